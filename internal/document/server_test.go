package document

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/terminowo/internal/extraction"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		scanner     *mockScanner
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = newMockScanner()
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		clock := &mockTimeSource{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
		service := NewServiceWithDeps(db, scanner, storage, &mockIDGenerator{ids: []string{"new-id"}}, clock)
		server := NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	do := func(method, path string, body io.Reader, contentType string) (*http.Response, []byte) {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, data
	}

	upload := func(filename string, data []byte) (*http.Response, []byte) {
		var b bytes.Buffer
		writer := multipart.NewWriter(&b)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		part.Write(data)
		Expect(writer.Close()).To(Succeed())
		return do(http.MethodPost, "/api/scans", &b, writer.FormDataContentType())
	}

	Describe("POST /api/scans", func() {
		When("recognition succeeds", func() {
			BeforeEach(func() {
				scanner.response = insurancePolicyResponse()
			})

			It("returns the scan", func() {
				resp, body := upload("polisa.jpg", []byte("fake image data"))
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var scan Scan
				Expect(json.Unmarshal(body, &scan)).To(Succeed())
				Expect(scan.ID).To(Equal("new-id"))
				Expect(scan.ContentType).To(Equal("image/jpeg"))
				Expect(scan.Result.ExpiryDate).To(Equal(&civil.Date{Year: 2025, Month: time.December, Day: 31}))
				Expect(scan.Result.DetectedCategory).To(Equal(ptr(extraction.CategoryInsurance)))
			})
		})

		When("the transport fails", func() {
			BeforeEach(func() {
				scanner.err = errors.New("document ai error (status 429): quota")
			})

			It("returns bad gateway with the transport message", func() {
				resp, body := upload("polisa.jpg", []byte("fake image data"))
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
				Expect(body).To(MatchJSON(`{"error": "document ai error (status 429): quota"}`))
			})
		})

		When("no file is sent", func() {
			It("returns bad request", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				Expect(writer.WriteField("name", "x")).To(Succeed())
				Expect(writer.Close()).To(Succeed())

				resp, body := do(http.MethodPost, "/api/scans", &b, writer.FormDataContentType())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(string(body)).To(ContainSubstring("No file was selected"))
			})
		})

		When("the body is not a form", func() {
			It("returns bad request", func() {
				resp, _ := do(http.MethodPost, "/api/scans", strings.NewReader("{}"), "application/json")
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("GET /api/documents", func() {
		BeforeEach(func() {
			db.documents["a"] = &Document{ID: "a", Name: "Polisa", Category: extraction.CategoryInsurance}
			db.documents["b"] = &Document{ID: "b", Name: "Faktura", Category: extraction.CategoryPayment}
		})

		It("lists all documents", func() {
			resp, body := do(http.MethodGet, "/api/documents", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var docs []Document
			Expect(json.Unmarshal(body, &docs)).To(Succeed())
			Expect(docs).To(HaveLen(2))
		})

		It("filters by category", func() {
			_, body := do(http.MethodGet, "/api/documents?category=payment", nil, "")

			var docs []Document
			Expect(json.Unmarshal(body, &docs)).To(Succeed())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal("b"))
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("db error")
			})

			It("returns internal server error", func() {
				resp, body := do(http.MethodGet, "/api/documents", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(string(body)).To(ContainSubstring("Internal server error"))
			})
		})
	})

	Describe("POST /api/documents", func() {
		BeforeEach(func() {
			db.scans["scan-1"] = &Scan{ID: "scan-1", ImagePath: "scan-1_a.jpg", ContentType: "image/jpeg"}
		})

		It("creates the document from a scan", func() {
			resp, body := do(http.MethodPost, "/api/documents", strings.NewReader(`{
				"scan_id": "scan-1",
				"name": "Przegląd",
				"expiry_date": "2025-09-30",
				"category": "technical_inspection",
				"reminder_days": [7, 1]
			}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var doc Document
			Expect(json.Unmarshal(body, &doc)).To(Succeed())
			Expect(doc.ID).To(Equal("new-id"))
			Expect(doc.ImagePath).To(Equal("scan-1_a.jpg"))
			Expect(doc.Category).To(Equal(extraction.CategoryTechnicalInspection))
			Expect(doc.ReminderDays).To(Equal([]int{1, 7}))
			Expect(db.reminders).To(HaveLen(2))
			Expect(db.scans).To(BeEmpty())
		})

		It("ignores the id and file names sent by the client", func() {
			db.documents["doc-1"] = &Document{ID: "doc-1", Name: "Polisa", ImagePath: "doc-1_polisa.png"}

			resp, body := do(http.MethodPost, "/api/documents", strings.NewReader(`{
				"id": "doc-1",
				"name": "Hijack",
				"image_path": "doc-1_polisa.png",
				"thumbnail_path": "thumb_doc-1.jpg"
			}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var doc Document
			Expect(json.Unmarshal(body, &doc)).To(Succeed())
			Expect(doc.ID).To(Equal("new-id"))
			Expect(doc.ImagePath).To(BeEmpty())
			Expect(doc.ThumbnailPath).To(BeEmpty())
			Expect(db.documents["doc-1"].Name).To(Equal("Polisa"))
		})

		It("rejects unknown scans", func() {
			resp, body := do(http.MethodPost, "/api/documents", strings.NewReader(`{"scan_id": "doc-1", "name": "x"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("scan doc-1 is unknown or already saved"))
			Expect(db.documents).To(BeEmpty())
		})

		It("rejects unsupported reminder intervals", func() {
			resp, body := do(http.MethodPost, "/api/documents", strings.NewReader(`{"name": "x", "reminder_days": [5]}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("unsupported reminder interval"))
		})

		It("rejects malformed bodies", func() {
			resp, _ := do(http.MethodPost, "/api/documents", strings.NewReader(`{"expiry_date": "31.12.2025"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("/api/documents/{id}", func() {
		BeforeEach(func() {
			db.documents["doc-1"] = &Document{
				ID:           "doc-1",
				Name:         "Polisa",
				ImagePath:    "doc-1_polisa.png",
				ContentType:  "image/png",
				Category:     extraction.CategoryInsurance,
				ReminderDays: []int{0},
				ReminderTime: DefaultReminderTime,
			}
			storage.files["doc-1_polisa.png"] = []byte("png bytes")
		})

		It("returns the document", func() {
			resp, body := do(http.MethodGet, "/api/documents/doc-1", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(body)).To(ContainSubstring(`"category":"insurance"`))
		})

		It("returns not found for unknown documents", func() {
			resp, body := do(http.MethodGet, "/api/documents/missing", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(body).To(MatchJSON(`{"error": "Document not found"}`))
		})

		It("updates the document", func() {
			resp, body := do(http.MethodPut, "/api/documents/doc-1", strings.NewReader(`{
				"name": "Polisa AC",
				"expiry_date": "2025-06-30",
				"reminder_time": "18:00:00"
			}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var doc Document
			Expect(json.Unmarshal(body, &doc)).To(Succeed())
			Expect(doc.Name).To(Equal("Polisa AC"))
			Expect(doc.ReminderTime).To(Equal(civil.Time{Hour: 18}))
			Expect(db.reminders["doc-1_0"].FireAt).To(BeTemporally("==", time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC)))
		})

		It("keeps the expiry date on a rename", func() {
			db.documents["doc-1"].ExpiryDate = &civil.Date{Year: 2025, Month: time.June, Day: 30}

			resp, body := do(http.MethodPut, "/api/documents/doc-1", strings.NewReader(`{"name": "Polisa OC"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(body)).To(ContainSubstring(`"expiry_date":"2025-06-30"`))
			Expect(db.reminders).To(HaveKey("doc-1_0"))
		})

		It("clears the expiry date when asked", func() {
			db.documents["doc-1"].ExpiryDate = &civil.Date{Year: 2025, Month: time.June, Day: 30}
			db.reminders["doc-1_0"] = &Reminder{ID: "doc-1_0", DocumentID: "doc-1"}

			resp, body := do(http.MethodPut, "/api/documents/doc-1", strings.NewReader(`{"clear_expiry_date": true}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(body)).NotTo(ContainSubstring("expiry_date"))
			Expect(db.reminders).To(BeEmpty())
		})

		It("deletes the document", func() {
			resp, _ := do(http.MethodDelete, "/api/documents/doc-1", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.documents).To(BeEmpty())
			Expect(storage.files).To(BeEmpty())
		})

		It("serves the image", func() {
			resp, body := do(http.MethodGet, "/api/documents/doc-1/image", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			Expect(body).To(Equal([]byte("png bytes")))
		})

		It("returns not found without a thumbnail", func() {
			resp, _ := do(http.MethodGet, "/api/documents/doc-1/thumbnail", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("returns not found when the image file is gone", func() {
			delete(storage.files, "doc-1_polisa.png")
			resp, body := do(http.MethodGet, "/api/documents/doc-1/image", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(body).To(MatchJSON(`{"error": "File not found"}`))
		})
	})

	Describe("GET /api/categories", func() {
		BeforeEach(func() {
			db.documents["a"] = &Document{ID: "a", Category: extraction.CategoryDriverLicense}
		})

		It("returns the category summary", func() {
			resp, body := do(http.MethodGet, "/api/categories", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{
				"all_documents_count": 1,
				"categories": [{"key": "driver_license", "label": "Driver's license", "count": 1}]
			}`))
		})
	})

	Describe("GET /api/reminder-intervals", func() {
		It("returns the selectable intervals", func() {
			resp, body := do(http.MethodGet, "/api/reminder-intervals", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`[
				{"days": 14, "label": "14 days before"},
				{"days": 7, "label": "7 days before"},
				{"days": 1, "label": "1 day before"},
				{"days": 0, "label": "Day of expiry"}
			]`))
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests", func() {
			resp, _ := do(http.MethodOptions, "/api/documents", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PUT"))
		})

		It("sets headers on regular responses", func() {
			resp, _ := do(http.MethodGet, "/api/reminder-intervals", nil, "")
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "secret"}
		})

		It("rejects requests without credentials", func() {
			resp, _ := do(http.MethodGet, "/api/documents", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		It("accepts valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/documents", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:secret")))

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
