package mercadopago

import (
	"bytes"
	"encoding/json"
	"fmt"
	io "io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"time"

	shortuuid "github.com/lithammer/shortuuid/v3"
	"github.com/pkg/errors"
)

const (
	mpContentType = `application/json`

	pathPayments       = "/v1/payments/"
	pathPaymentsSearch = "/v1/payments/search"
	pathPreferences    = "/checkout/preferences"
	pathMerchantOrders = "/merchant_orders/"
)

// ErrPaymentNotFound reports a provider-side 404 for a payment id. It is a
// recordable outcome, not a transport failure.
var ErrPaymentNotFound = errors.New("payment not found for token")

// MP is the Mercado Pago HTTP integration. MerchantOrderURL points at the
// mercadolibre domain, which hosts the merchant-orders resource.
type MP struct {
	BaseURL          string
	MerchantOrderURL string
	Token            string
	NotificationPath string
	BackURLBase      string

	Client *http.Client
}

func New(baseURL, merchantOrderURL, token, notificationPath, backURLBase string, timeout time.Duration) *MP {
	return &MP{
		BaseURL:          baseURL,
		MerchantOrderURL: merchantOrderURL,
		Token:            token,
		NotificationPath: notificationPath,
		BackURLBase:      backURLBase,
		Client:           &http.Client{Timeout: timeout},
	}
}

type MPCreatePreferenceRequest struct {
	NotificationURL   string               `json:"notification_url"`
	ExternalReference string               `json:"external_reference"`
	Items             []MPPreferenceItem   `json:"items"`
	BackUrls          MPPreferenceBackUrls `json:"back_urls"`
	AutoReturn        string               `json:"auto_return,omitempty"`
}

type MPPreferenceBackUrls struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type MPPreferenceItem struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string `json:"currency_id,omitempty"`
}

type MPCreatePreferenceResponse struct {
	ID                string `json:"id"`
	InitPoint         string `json:"init_point"`
	SandboxInitPoint  string `json:"sandbox_init_point"`
	ExternalReference string `json:"external_reference"`
}

type MPPayment struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	StatusDetail      string `json:"status_detail"`
	ExternalReference string `json:"external_reference"`
	PreferenceID      string `json:"preference_id"`
	Order             struct {
		ID int64 `json:"id"`
	} `json:"order"`
}

type MPPaymentLite struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type MPMerchantOrder struct {
	ID                int64           `json:"id"`
	ExternalReference string          `json:"external_reference"`
	Payments          []MPPaymentLite `json:"payments"`
}

type mpSearchResponse struct {
	Results []MPPaymentLite `json:"results"`
}

func (mp *MP) MPCreatePreference(items []MPPreferenceItem, externalReference string) (*MPCreatePreferenceResponse, error) {
	if externalReference == "" {
		externalReference = shortuuid.New()
	}

	requestBody := MPCreatePreferenceRequest{
		NotificationURL:   fmt.Sprintf("%s%s", mp.BackURLBase, mp.NotificationPath),
		ExternalReference: externalReference,
		Items:             items,
		BackUrls: MPPreferenceBackUrls{
			Success: fmt.Sprintf("%s/payment/return/success", mp.BackURLBase),
			Failure: fmt.Sprintf("%s/payment/return/failure", mp.BackURLBase),
			Pending: fmt.Sprintf("%s/payment/return/pending", mp.BackURLBase),
		},
		AutoReturn: "approved",
	}

	responseBody, err := mp.post(mp.BaseURL+pathPreferences, &requestBody)
	if err != nil {
		return nil, err
	}

	if responseBody == nil {
		return nil, errors.New("failed creating preference in Mercado Pago")
	}

	var response MPCreatePreferenceResponse
	if err := json.Unmarshal(responseBody, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

func (mp *MP) MPGetPayment(id string) (*MPPayment, error) {
	responseBody, err := mp.get(mp.BaseURL + pathPayments + url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var response MPPayment
	if err := json.Unmarshal(responseBody, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

func (mp *MP) MPGetMerchantOrder(id string) (*MPMerchantOrder, error) {
	responseBody, err := mp.get(mp.MerchantOrderURL + pathMerchantOrders + url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var response MPMerchantOrder
	if err := json.Unmarshal(responseBody, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// MPSearchPaymentsByExternalReference returns the provider's payments for an
// external reference, newest first.
func (mp *MP) MPSearchPaymentsByExternalReference(externalReference string) ([]MPPaymentLite, error) {
	query := url.Values{}
	query.Set("external_reference", externalReference)
	query.Set("sort", "date_created")
	query.Set("criteria", "desc")

	responseBody, err := mp.get(mp.BaseURL + pathPaymentsSearch + "?" + query.Encode())
	if err != nil {
		return nil, err
	}

	var response mpSearchResponse
	if err := json.Unmarshal(responseBody, &response); err != nil {
		return nil, err
	}

	return response.Results, nil
}

func (mp *MP) post(requestURL string, body interface{}) ([]byte, error) {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequest(http.MethodPost, requestURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", mpContentType)
	request.Header.Set("Authorization", "Bearer "+mp.Token)

	response, err := mp.client().Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusCreated && response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("bad response %d", response.StatusCode)
	}

	return responseBody, nil
}

func (mp *MP) get(requestURL string) ([]byte, error) {
	request, err := http.NewRequest(http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+mp.Token)

	response, err := mp.client().Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if response.StatusCode == http.StatusNotFound {
		return nil, ErrPaymentNotFound
	}

	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("bad response %d", response.StatusCode)
	}

	return responseBody, nil
}

func (mp *MP) client() *http.Client {
	if mp.Client != nil {
		return mp.Client
	}
	return http.DefaultClient
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
