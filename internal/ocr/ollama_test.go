package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server *ghttp.Server
		engine *Ollama
		image  []byte
		result *RawText
		err    error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var newErr error
		engine, newErr = NewOllama(server.URL(), "qwen2.5vl")
		Expect(newErr).NotTo(HaveOccurred())
		image = []byte("jpeg bytes")
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		result, err = engine.ExtractText(context.Background(), image, "receipt.jpg")
	})

	When("the model answers", func() {
		var request ollamaChatRequest

		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					body, readErr := io.ReadAll(r.Body)
					Expect(readErr).NotTo(HaveOccurred())
					Expect(json.Unmarshal(body, &request)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: "TARGET\n\n  Soap 3.99  \nTOTAL 4.31"},
					Done:    true,
				}),
			))
		})

		It("returns normalized raw text", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Lines).To(Equal([]string{"TARGET", "Soap 3.99", "TOTAL 4.31"}))
			Expect(result.EngineID).To(Equal("ollama"))
		})

		It("sends the image on the user message", func() {
			Expect(request.Model).To(Equal("qwen2.5vl"))
			Expect(request.Stream).To(BeFalse())
			Expect(request.Messages).To(HaveLen(1))
			Expect(request.Messages[0].Images).To(HaveLen(1))
			Expect(request.Messages[0].Content).To(ContainSubstring("Return only the raw text"))
		})
	})

	When("the API returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the error without the response body", func() {
			Expect(err).To(MatchError("ollama API error (status 500)"))
		})
	})

	When("the image exceeds the cap", func() {
		BeforeEach(func() {
			image = []byte(strings.Repeat("x", MaxImageBytes+1))
		})

		It("returns a PayloadTooLargeError without calling the API", func() {
			var tooLarge *PayloadTooLargeError
			Expect(errors.As(err, &tooLarge)).To(BeTrue())
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})
})
