package crpdph

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpointURL = "https://adisrws.mfcr.cz/dpr/axis2/services/rozhraniCRPDPH.rozhraniCRPDPHSOAP"
	SOAPAction         = "getStatusNespolehlivyPlatce"
	DefaultTimeout     = 30 * time.Second

	soapEnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"
	serviceNamespace      = "http://adis.mfcr.cz/rozhraniCRPDPH/"

	maxResponseBytes = 1 << 20
)

// TransportError covers connection failures, timeouts and non-2xx
// responses from the registry.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("unexpected status: %d", e.StatusCode)
	}
	return fmt.Sprintf("contact service: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means the registry answered but the body was not the
// expected XML.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type Checker struct {
	endpoint *url.URL
	client   *http.Client
	timeout  time.Duration
	logger   logrus.FieldLogger
	limiter  *rate.Limiter
}

type CheckerInterface interface {
	Check(ctx context.Context, vat string) *CheckResult
	Status(ctx context.Context, dic string) (*PayerStatus, error)
	Reliable(ctx context.Context, vat string) (bool, error)
}

type Option func(*Checker) error

// WithHTTPClient replaces the default client. The client's own timeout
// settings take precedence over WithTimeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) error {
		if client == nil {
			return fmt.Errorf("http client must not be nil")
		}
		c.client = client
		return nil
	}
}

func WithEndpoint(endpoint string) Option {
	return func(c *Checker) error {
		u, err := url.Parse(endpoint)
		if err != nil {
			return err
		}
		c.endpoint = u
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Checker) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.timeout = d
		return nil
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Checker) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithRateLimit throttles outgoing lookups to requestsPerSecond. Useful
// for programmatic callers issuing many sequential checks against the
// shared government endpoint.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Checker) error {
		if requestsPerSecond <= 0 {
			return fmt.Errorf("rate must be positive, got %v", requestsPerSecond)
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
		return nil
	}
}

func NewChecker(opts ...Option) (*Checker, error) {
	endpoint, err := url.Parse(DefaultEndpointURL)
	if err != nil {
		return nil, err
	}

	c := &Checker{
		endpoint: endpoint,
		timeout:  DefaultTimeout,
		logger:   logrus.StandardLogger(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}

	return c, nil
}

// NormalizeVATNumber strips every character that is not a decimal digit,
// keeping the remaining digits in their original order. An empty result
// means no usable identifier was supplied.
func NormalizeVATNumber(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// Check runs the full lookup for a VAT number in any format and always
// returns a complete record; transport and parse failures are folded
// into the record and logged, never returned.
func (c *Checker) Check(ctx context.Context, vat string) *CheckResult {
	result := &CheckResult{
		Status:           StatusError,
		ReliableVATPayer: ReliabilityReliable, // registry contract defaults to reliable
		AutoChecked:      true,
	}

	dic := NormalizeVATNumber(vat)
	result.VATNumberClean = dic

	if dic == "" {
		result.Message = "Invalid VAT number - no digits found"
		result.AutoChecked = false
		return result
	}

	rsp, err := c.call(ctx, dic)
	if err != nil {
		c.logger.WithError(err).Error("could not get response from VAT service")
		result.Message = "Error: could not get response from VAT service"
		result.AutoChecked = false
		return result
	}

	if rsp.Status.Text != "" {
		c.logger.WithFields(logrus.Fields{
			"code": rsp.Status.Code,
			"text": rsp.Status.Text,
		}).Debug("service status")
	}

	payer := rsp.payer(dic)
	if payer == nil {
		result.Status = StatusNotFound
		result.ReliableVATPayer = ReliabilityUnknown
		result.Message = "VAT payer not found in registry"
		return result
	}

	label, reliability := interpretCode(payer.UnreliableCode)

	result.Status = StatusSuccess
	result.ReliableVATPayer = reliability
	result.Message = "VAT Tax payer status: " + label
	return result
}

// Status performs the registry lookup for an already-normalized DIC.
// It returns (nil, nil) when the registry has no record for the DIC,
// otherwise the matching payer element or a *TransportError/*ParseError.
func (c *Checker) Status(ctx context.Context, dic string) (*PayerStatus, error) {
	rsp, err := c.call(ctx, dic)
	if err != nil {
		return nil, err
	}
	return rsp.payer(dic), nil
}

// Reliable answers true/false only for a confirmed registry entry and
// returns an error for every outcome where reliability stays unknown.
func (c *Checker) Reliable(ctx context.Context, vat string) (bool, error) {
	result := c.Check(ctx, vat)

	if result.Status == StatusSuccess {
		switch result.ReliableVATPayer {
		case ReliabilityReliable:
			return true, nil
		case ReliabilityUnreliable:
			return false, nil
		}
	}

	return false, fmt.Errorf("reliability not confirmed: %s", result.Message)
}

// call is the single fallible operation: one POST, one parse. No retry;
// a failed attempt is final.
func (c *Checker) call(ctx context.Context, dic string) (*statusResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: err}
		}
	}

	payload, err := buildEnvelope(dic)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", SOAPAction)

	rsp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(rsp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		return nil, &TransportError{StatusCode: rsp.StatusCode}
	}

	var env responseEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, &ParseError{Err: err}
	}

	return &env.Body.Response, nil
}

func buildEnvelope(dic string) ([]byte, error) {
	env := requestEnvelope{
		SoapNS: soapEnvelopeNamespace,
		Body: requestBody{
			Request: statusRequest{
				Namespace: serviceNamespace,
				DIC:       dic,
			},
		},
	}

	out, err := xml.Marshal(env)
	if err != nil {
		return nil, err
	}

	return append([]byte(xml.Header), out...), nil
}

// interpretCode maps the nespolehlivyPlatce attribute to a label and
// tri-state answer. Anything outside ANO/NE, including the service's
// explicit NENALEZEN, reads as "Not found".
func interpretCode(code string) (string, Reliability) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "ANO":
		return "Unreliable", ReliabilityUnreliable
	case "NE":
		return "Reliable", ReliabilityReliable
	default:
		return "Not found", ReliabilityUnknown
	}
}
