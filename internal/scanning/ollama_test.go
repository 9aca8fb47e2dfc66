package scanning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/terminowo/internal/extraction"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		resp    *Response
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var newErr error
		scanner, newErr = NewOllama(server.URL()+"/", "qwen2-vl:7b")
		Expect(newErr).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		resp, err = scanner.Recognize(context.Background(), samplePNG(), "image/png")
	})

	When("the model answers with a document", func() {
		BeforeEach(func() {
			answer := "```json\n" + `{"text": "Umowa najmu", "entities": [{"type": "expiry_date", "mentionText": "30.06.2026"}]}` + "\n```"
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				func(w http.ResponseWriter, r *http.Request) {
					body, readErr := io.ReadAll(r.Body)
					Expect(readErr).NotTo(HaveOccurred())
					var req ollamaChatRequest
					Expect(json.Unmarshal(body, &req)).To(Succeed())
					Expect(req.Model).To(Equal("qwen2-vl:7b"))
					Expect(req.Format).To(Equal("json"))
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Images).To(HaveLen(1))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: answer},
					Done:    true,
				}),
			))
		})

		It("should parse the answer", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(*resp.Document.Text).To(Equal("Umowa najmu"))
			Expect(resp.Document.Entities).To(HaveLen(1))
			Expect(resp.Document.Entities[0].Type).To(Equal(extraction.EntityExpiryDate))
			Expect(*resp.Document.Entities[0].MentionText).To(Equal("30.06.2026"))
		})
	})

	When("the model answers without JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "I cannot read this image."},
			}))
		})

		It("should return an error", func() {
			Expect(err).To(MatchError(ContainSubstring("no JSON object found in response")))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, `{"error":"model not found"}`))
		})

		It("should include the status and body", func() {
			Expect(err).To(MatchError(ContainSubstring("ollama API error (status 404)")))
			Expect(err).To(MatchError(ContainSubstring("model not found")))
		})
	})
})
