package structuring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-extract/internal/ocr"
)

type chatRequest struct {
	Model          string `json:"model"`
	ResponseFormat struct {
		Type       string `json:"type"`
		JSONSchema struct {
			Name   string `json:"name"`
			Schema struct {
				Type       string                     `json:"type"`
				Required   []string                   `json:"required"`
				Properties map[string]json.RawMessage `json:"properties"`
			} `json:"schema"`
		} `json:"json_schema"`
	} `json:"response_format"`
}

var _ = Describe("NewOpenAI", func() {
	var (
		server  *ghttp.Server
		request chatRequest
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		request = chatRequest{}
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/chat/completions"),
			ghttp.VerifyHeaderKV("Authorization", "Bearer gsk_test"),
			func(w http.ResponseWriter, r *http.Request) {
				body, readErr := io.ReadAll(r.Body)
				Expect(readErr).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &request)).To(Succeed())
			},
			ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 1700000000,
				"model":   DefaultModel,
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": validResponse},
					"finish_reason": "stop",
				}},
			}),
		))
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires an api key", func() {
		_, err := NewOpenAI(Config{BaseURL: server.URL()})
		Expect(err).To(MatchError("structuring api key is required"))
	})

	It("sends the receipt schema as the response format", func() {
		structurer, err := NewOpenAI(Config{BaseURL: server.URL(), APIKey: "gsk_test"})
		Expect(err).NotTo(HaveOccurred())

		r, err := structurer.Structure(context.Background(), &ocr.RawText{FullText: "CVS PHARMACY\nTOTAL 7.56"})
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Vendor).To(Equal("CVS Pharmacy"))

		Expect(request.Model).To(Equal(DefaultModel))
		Expect(request.ResponseFormat.Type).To(Equal("json_schema"))
		Expect(request.ResponseFormat.JSONSchema.Name).To(Equal("structured_receipt"))
		schema := request.ResponseFormat.JSONSchema.Schema
		Expect(schema.Type).To(Equal("object"))
		Expect(schema.Required).To(ConsistOf(receiptRequired))
		Expect(schema.Properties).To(HaveKey("items"))
		Expect(schema.Properties).To(HaveKey("notes"))
	})
})

var _ = Describe("responseFormat", func() {
	It("requires the same item fields the parser does", func() {
		items := responseFormat().JSONSchema.Schema.Properties["items"]
		Expect(items.Items.Required).To(Equal(itemRequired))
		Expect(items.Items.AdditionalProperties).To(BeFalse())
	})
})
