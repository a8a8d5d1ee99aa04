package extraction

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/lexiflow-mocks/internal/scanning"
)

var _ = Describe("Server", func() {
	var (
		server      *Server
		ghttpServer *ghttp.Server
		temp        *LocalStorage
	)

	BeforeEach(func() {
		samples, err := NewLocalStorage(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		temp, err = NewLocalStorage(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		service := NewServiceWithDeps(scanning.None{}, samples, temp,
			&mockIDGenerator{id: "upload-id"},
			&mockTimeSource{now: time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)})
		Expect(service.EnsureSamples()).To(Succeed())

		server = NewServerWithMux(service, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AllowUnhandledRequests = false
		ghttpServer.RouteToHandler(http.MethodPost, "/ocr/extract", server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodGet, "/healthz", server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodGet, "/metrics", server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	postMultipart := func(fields map[string]string, filename string, data []byte) *http.Response {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		for k, v := range fields {
			Expect(writer.WriteField(k, v)).To(Succeed())
		}
		if filename != "" {
			part, err := writer.CreateFormFile("file", filename)
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(data)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(ghttpServer.URL()+"/ocr/extract", writer.FormDataContentType(), &body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	readJSON := func(resp *http.Response) map[string]any {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		var out map[string]any
		Expect(json.Unmarshal(body, &out)).To(Succeed())
		return out
	}

	Describe("POST /ocr/extract", func() {
		It("should extract a named sample", func() {
			resp := postMultipart(map[string]string{"sample_name": "r1.png"}, "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/json"))
			Expect(resp.Header.Get("X-OCR-Source")).To(Equal("parsed"))

			out := readJSON(resp)
			Expect(out).To(HaveKeyWithValue("vendor", "Office Depot AG"))
			Expect(out).To(HaveKeyWithValue("invoiceDate", "2025-01-16"))
			Expect(out).To(HaveKeyWithValue("total", "89.9"))
			Expect(out).To(HaveKeyWithValue("currency", "EUR"))
			Expect(out).To(HaveKey("vat"))
			Expect(out).To(HaveKey("rawText"))
			Expect(out).NotTo(HaveKey("source"))
		})

		It("should accept a urlencoded sample name", func() {
			form := url.Values{"sample_name": {"r2"}}
			resp, err := http.Post(ghttpServer.URL()+"/ocr/extract", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readJSON(resp)).To(HaveKeyWithValue("vendor", "Bäckerei Sonnig"))
		})

		It("should prefer the sample name over an upload", func() {
			resp := postMultipart(map[string]string{"sample_name": "r2.png"}, "r1.png", []byte("bytes"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readJSON(resp)).To(HaveKeyWithValue("vendor", "Bäckerei Sonnig"))
		})

		It("should extract an upload using its file name", func() {
			resp := postMultipart(nil, "my-r1-scan.jpg", []byte("jpeg bytes"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("X-OCR-Source")).To(Equal("canned"))
			Expect(readJSON(resp)).To(HaveKeyWithValue("vendor", "Office Depot AG"))
		})

		It("should return the default result for unknown uploads", func() {
			resp := postMultipart(nil, "receipt.png", []byte("bytes"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("X-OCR-Source")).To(Equal("default"))

			out := readJSON(resp)
			Expect(out).To(HaveKeyWithValue("vendor", "Demo Store"))
			Expect(out).To(HaveKeyWithValue("invoiceDate", "2025-06-01"))
			Expect(out).To(HaveKeyWithValue("total", "12.34"))
		})

		It("should leave no temporary files behind", func() {
			resp := postMultipart(nil, "receipt.png", []byte("bytes"))
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			Expect(temp.Exists("upload-id.png")).To(BeFalse())
		})

		It("should reject requests without input", func() {
			resp := postMultipart(nil, "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(readJSON(resp)).To(HaveKeyWithValue("detail", "Provide a file upload or sample_name."))
		})

		It("should reject a bodiless request", func() {
			resp, err := http.Post(ghttpServer.URL()+"/ocr/extract", "text/plain", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(readJSON(resp)).To(HaveKeyWithValue("detail", "Provide a file upload or sample_name."))
		})

		It("should reject empty uploads", func() {
			resp := postMultipart(nil, "r1.png", []byte{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(readJSON(resp)).To(HaveKeyWithValue("detail", "Empty file"))
		})

		It("should return 404 for unknown samples", func() {
			resp := postMultipart(map[string]string{"sample_name": "r7"}, "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(readJSON(resp)).To(HaveKeyWithValue("detail", "Sample not found"))
		})

		It("should not serve files outside the sample directory", func() {
			resp := postMultipart(map[string]string{"sample_name": "../../../etc/passwd"}, "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})

		It("should reject a malformed multipart body", func() {
			resp, err := http.Post(ghttpServer.URL()+"/ocr/extract", "multipart/form-data; boundary=xyz", strings.NewReader("garbage"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(readJSON(resp)).To(HaveKeyWithValue("detail", "Error parsing form"))
		})
	})

	Describe("GET /healthz", func() {
		It("should report ok", func() {
			resp, err := http.Get(ghttpServer.URL() + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readJSON(resp)).To(HaveKeyWithValue("status", "ok"))
		})
	})

	Describe("GET /metrics", func() {
		It("should count extractions by source", func() {
			postMultipart(map[string]string{"sample_name": "r1"}, "", nil).Body.Close()
			postMultipart(nil, "receipt.png", []byte("bytes")).Body.Close()
			postMultipart(nil, "", nil).Body.Close()

			resp, err := http.Get(ghttpServer.URL() + "/metrics")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			Expect(string(body)).To(ContainSubstring(`ocrmock_extractions_total{source="parsed"} 1`))
			Expect(string(body)).To(ContainSubstring(`ocrmock_extractions_total{source="default"} 1`))
			Expect(string(body)).NotTo(ContainSubstring(`source="canned"`))
		})
	})
})
