package crpdph

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
)

// CheckResult is the outcome of a single registry lookup. Field names
// follow the wire shape consumed by downstream tooling.
type CheckResult struct {
	Status           Status      `json:"status"`
	ReliableVATPayer Reliability `json:"reliable_vat_payer"`
	Message          string      `json:"message"`
	AutoChecked      bool        `json:"auto_checked"`
	VATNumberClean   string      `json:"vat_number_clean"`
}

type Status string

const (
	StatusSuccess  Status = "success"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

func (s *Status) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	value = strings.ToLower(value)

	switch Status(value) {
	case StatusSuccess,
		StatusNotFound,
		StatusError:
		*s = Status(value)
		return nil
	default:
		return fmt.Errorf("invalid status: %q", value)
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	switch s {
	case StatusSuccess,
		StatusNotFound,
		StatusError:
		return json.Marshal(string(s))
	default:
		return nil, fmt.Errorf("invalid status: %q", s)
	}
}

// Reliability is the tri-state answer of the registry. The string values
// ("true", "false", "NA") are part of the output contract.
type Reliability string

const (
	ReliabilityReliable   Reliability = "true"
	ReliabilityUnreliable Reliability = "false"
	ReliabilityUnknown    Reliability = "NA"
)

func (r *Reliability) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	switch strings.ToLower(value) {
	case "true":
		*r = ReliabilityReliable
	case "false":
		*r = ReliabilityUnreliable
	case "na":
		*r = ReliabilityUnknown
	default:
		return fmt.Errorf("invalid reliability: %q", value)
	}
	return nil
}

func (r Reliability) MarshalJSON() ([]byte, error) {
	switch r {
	case ReliabilityReliable,
		ReliabilityUnreliable,
		ReliabilityUnknown:
		return json.Marshal(string(r))
	default:
		return nil, fmt.Errorf("invalid reliability: %q", r)
	}
}

// PayerStatus is the decoded statusPlatceDPH element for one payer.
type PayerStatus struct {
	DIC             string `xml:"dic,attr"`
	UnreliableCode  string `xml:"nespolehlivyPlatce,attr"`
	UnreliableSince string `xml:"datumZverejneniNespolehlivosti,attr"`
	TaxOffice       string `xml:"cisloFu,attr"`
}

// ResponseStatus is the service-level status element of the response.
type ResponseStatus struct {
	Code int    `xml:"statusCode,attr"`
	Text string `xml:"statusText,attr"`
}

type requestEnvelope struct {
	XMLName xml.Name    `xml:"soapenv:Envelope"`
	SoapNS  string      `xml:"xmlns:soapenv,attr"`
	Body    requestBody `xml:"soapenv:Body"`
}

type requestBody struct {
	Request statusRequest `xml:"StatusNespolehlivyPlatceRequest"`
}

type statusRequest struct {
	Namespace string `xml:"xmlns,attr"`
	DIC       string `xml:"dic"`
}

// responseEnvelope matches elements by local name, so namespace prefixes
// in the response do not matter.
type responseEnvelope struct {
	XMLName xml.Name     `xml:"Envelope"`
	Body    responseBody `xml:"Body"`
}

type responseBody struct {
	Response statusResponse `xml:"StatusNespolehlivyPlatceResponse"`
}

type statusResponse struct {
	Status ResponseStatus `xml:"status"`
	Payers []PayerStatus  `xml:"statusPlatceDPH"`
}

func (r *statusResponse) payer(dic string) *PayerStatus {
	for i := range r.Payers {
		if r.Payers[i].DIC == dic {
			return &r.Payers[i]
		}
	}
	return nil
}
