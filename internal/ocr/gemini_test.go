package ocr

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-extract/internal/imaging"
)

// fakeGenerator records the parts it was called with
type fakeGenerator struct {
	parts []genai.Part
	resp  *genai.GenerateContentResponse
	err   error
	block bool
	calls int
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.parts = parts
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(text)}}},
		},
	}
}

var _ = Describe("Gemini", func() {
	var (
		generator *fakeGenerator
		engine    *Gemini
		image     []byte
		hint      string
		result    *RawText
		err       error
	)

	BeforeEach(func() {
		generator = &fakeGenerator{resp: textResponse("```\nWALGREENS\r\n\r\nTOTAL 12.50\n```")}
		engine = newGemini(generator, WithLanguage("eng"))
		image = []byte("png bytes")
		hint = "uploads/receipt.png"
	})

	JustBeforeEach(func() {
		result, err = engine.ExtractText(context.Background(), image, hint)
	})

	When("the model answers", func() {
		It("returns normalized raw text", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Lines).To(Equal([]string{"WALGREENS", "TOTAL 12.50"}))
			Expect(result.EngineID).To(Equal("gemini"))
			Expect(result.Language).To(Equal("eng"))
		})

		It("sends the image with a mime type from the hint", func() {
			Expect(generator.parts).To(HaveLen(2))
			blob, ok := generator.parts[0].(genai.Blob)
			Expect(ok).To(BeTrue())
			Expect(blob.MIMEType).To(Equal("image/png"))
		})
	})

	When("the hint is not a png", func() {
		BeforeEach(func() {
			hint = "IMG_0001.JPG"
		})

		It("sends jpeg", func() {
			blob := generator.parts[0].(genai.Blob)
			Expect(blob.MIMEType).To(Equal("image/jpeg"))
		})
	})

	When("the image was converted from HEIC", func() {
		BeforeEach(func() {
			hint = imaging.Image{Format: imaging.KindPNG, Source: imaging.KindHEIC}.Hint("uploads/IMG_1.heic")
		})

		It("sends png", func() {
			blob := generator.parts[0].(genai.Blob)
			Expect(blob.MIMEType).To(Equal("image/png"))
		})
	})

	DescribeTable("mime types for passthrough rasters",
		func(name, mimeType string) {
			_, callErr := engine.ExtractText(context.Background(), image, name)
			Expect(callErr).NotTo(HaveOccurred())
			blob := generator.parts[0].(genai.Blob)
			Expect(blob.MIMEType).To(Equal(mimeType))
		},
		Entry("gif", "scan.gif", "image/gif"),
		Entry("webp", "photo.webp", "image/webp"),
		Entry("tiff", "fax.TIF", "image/tiff"),
		Entry("bmp", "old.bmp", "image/bmp"),
	)

	When("a smaller cap is configured", func() {
		BeforeEach(func() {
			engine = newGemini(generator, WithMaxImageBytes(4))
		})

		It("rejects images above it", func() {
			var tooLarge *PayloadTooLargeError
			Expect(errors.As(err, &tooLarge)).To(BeTrue())
			Expect(tooLarge.Limit).To(Equal(4))
			Expect(generator.calls).To(Equal(0))
		})
	})

	When("the model does not answer within the timeout", func() {
		BeforeEach(func() {
			generator.block = true
			engine = newGemini(generator, WithTimeout(20*time.Millisecond))
		})

		It("returns a deadline error", func() {
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		})
	})

	When("the image exceeds the cap", func() {
		BeforeEach(func() {
			image = []byte(strings.Repeat("x", MaxImageBytes+1))
		})

		It("returns a PayloadTooLargeError without calling the model", func() {
			var tooLarge *PayloadTooLargeError
			Expect(errors.As(err, &tooLarge)).To(BeTrue())
			Expect(tooLarge.Error()).To(ContainSubstring("max 3 MB"))
			Expect(generator.calls).To(Equal(0))
		})
	})

	When("the image is exactly at the cap", func() {
		BeforeEach(func() {
			image = []byte(strings.Repeat("x", MaxImageBytes))
		})

		It("is accepted", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the model returns no candidates", func() {
		BeforeEach(func() {
			generator.resp = &genai.GenerateContentResponse{}
		})

		It("returns the error", func() {
			Expect(err).To(MatchError("no response from gemini"))
		})
	})

	When("the model call fails", func() {
		BeforeEach(func() {
			generator.err = errors.New("quota exceeded")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("generating content: quota exceeded")))
		})
	})
})
