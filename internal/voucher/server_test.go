package voucher

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"
)

const validBody = `{"vendor":"Office Depot AG","date":"2025-01-16","total":89.90,"vat":19.00,"rawText":"Gesamt 89,90 EUR","lines":[{"description":"Paper","amount":"89.90"},{}]}`

var _ = Describe("Server", func() {
	var (
		store       *mockStore
		cfg         Config
		server      *Server
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server = NewServerWithMux(NewService(store, cfg), http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AllowUnhandledRequests = false
		ghttpServer.RouteToHandler(http.MethodGet, "/healthz", server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodGet, "/metrics", server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodGet, "/api/v1/vouchers", server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodPost, "/api/v1/vouchers", server.ServeHTTP)
	}

	post := func(key, body string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, ghttpServer.URL()+"/api/v1/vouchers", strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("x-api-key", key)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	list := func(key string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/v1/vouchers", nil)
		Expect(err).NotTo(HaveOccurred())
		if key != "" {
			req.Header.Set("x-api-key", key)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	readJSON := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, v)).To(Succeed())
	}

	BeforeEach(func() {
		store = newMockStore()
		cfg = Config{APIKey: "demo-lexoffice-key", DefaultCurrency: "EUR"}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
			ghttpServer = nil
		}
	})

	Describe("handleHealthz", func() {
		It("should return ok without a key", func() {
			resp, err := http.Get(ghttpServer.URL() + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var body map[string]string
			readJSON(resp, &body)
			Expect(body).To(HaveKeyWithValue("status", "ok"))
		})
	})

	Describe("handleCreateVoucher", func() {
		When("the key is valid", func() {
			It("should return status OK with a voucher ID", func() {
				resp := post("demo-lexoffice-key", validBody)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
				var body map[string]string
				readJSON(resp, &body)
				Expect(body["voucherId"]).NotTo(BeEmpty())
			})

			It("should store the decoded payload", func() {
				resp := post("demo-lexoffice-key", validBody)
				resp.Body.Close()
				Expect(store.vouchers).To(HaveLen(1))
				payload := store.vouchers[0].Payload
				Expect(payload.Vendor).To(Equal("Office Depot AG"))
				Expect(payload.Date.String()).To(Equal("2025-01-16"))
				Expect(payload.Total.Equal(decimal.RequireFromString("89.9"))).To(BeTrue())
				Expect(payload.Currency).To(Equal("EUR"))
				Expect(payload.RawText).To(HaveValue(Equal("Gesamt 89,90 EUR")))
				Expect(payload.Lines).To(HaveLen(2))
				Expect(payload.Lines[0].Description).To(HaveValue(Equal("Paper")))
				Expect(payload.Lines[1].Amount).To(BeNil())
			})

			It("should record the caller address", func() {
				resp := post("demo-lexoffice-key", validBody)
				resp.Body.Close()
				Expect(store.vouchers[0].Remote).To(HaveValue(Equal("127.0.0.1")))
			})
		})

		When("the key is wrong", func() {
			It("should return status Unauthorized", func() {
				resp := post("nope", validBody)
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				var body map[string]string
				readJSON(resp, &body)
				Expect(body).To(HaveKeyWithValue("detail", "Invalid API key"))
			})

			It("should not store anything", func() {
				post("nope", validBody).Body.Close()
				Expect(store.vouchers).To(BeEmpty())
			})
		})

		When("the key is missing", func() {
			It("should return status Unauthorized", func() {
				resp := post("", validBody)
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				resp.Body.Close()
			})
		})

		When("no key is configured", func() {
			BeforeEach(func() {
				cfg.APIKey = ""
				setupServer()
			})

			It("should accept requests without a key", func() {
				resp := post("", validBody)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})
		})

		When("required fields are missing", func() {
			It("should return status Unprocessable Entity naming the fields", func() {
				resp := post("demo-lexoffice-key", `{"vendor":"Office Depot AG"}`)
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				var body map[string]string
				readJSON(resp, &body)
				Expect(body["detail"]).To(ContainSubstring("date: field required"))
				Expect(body["detail"]).To(ContainSubstring("total: field required"))
				Expect(body["detail"]).To(ContainSubstring("vat: field required"))
			})
		})

		When("the body is not JSON", func() {
			It("should return status Unprocessable Entity", func() {
				resp := post("demo-lexoffice-key", "not json")
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				resp.Body.Close()
			})
		})

		When("the date is malformed", func() {
			It("should return status Unprocessable Entity", func() {
				resp := post("demo-lexoffice-key", `{"vendor":"x","date":"16.01.2025","total":1,"vat":1}`)
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				resp.Body.Close()
			})
		})

		When("the store fails", func() {
			BeforeEach(func() {
				store.appendErr = errors.New("disk full")
			})

			It("should return status Internal Server Error", func() {
				resp := post("demo-lexoffice-key", validBody)
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})
	})

	Describe("handleListVouchers", func() {
		When("vouchers were created", func() {
			It("should list them with matching IDs", func() {
				var created map[string]string
				readJSON(post("demo-lexoffice-key", validBody), &created)

				resp := list("demo-lexoffice-key")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var vouchers []Voucher
				readJSON(resp, &vouchers)
				Expect(vouchers).To(HaveLen(1))
				Expect(vouchers[0].VoucherID).To(Equal(created["voucherId"]))
				Expect(vouchers[0].Payload.Vendor).To(Equal("Office Depot AG"))
			})
		})

		When("nothing was created", func() {
			It("should return an empty JSON array", func() {
				resp := list("demo-lexoffice-key")
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(bytes.TrimSpace(body)).To(Equal([]byte("[]")))
			})
		})

		When("the key is wrong", func() {
			It("should return status Unauthorized", func() {
				resp := list("nope")
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				resp.Body.Close()
			})
		})

		When("the store fails", func() {
			BeforeEach(func() {
				store.listErr = errors.New("boom")
			})

			It("should return status Internal Server Error", func() {
				resp := list("demo-lexoffice-key")
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})
	})

	Describe("metrics", func() {
		It("should count created vouchers and auth failures", func() {
			post("demo-lexoffice-key", validBody).Body.Close()
			post("nope", validBody).Body.Close()

			resp, err := http.Get(ghttpServer.URL() + "/metrics")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("lexmock_vouchers_created_total 1"))
			Expect(string(body)).To(ContainSubstring("lexmock_auth_failures_total 1"))
		})
	})
})
