package dto

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// CertificateIncompleteResponse is returned when a certificate row exists
// without a stored document; repair it with the admin repair endpoint.
type CertificateIncompleteResponse struct {
	Message       string   `json:"message"`
	CertificateID uint     `json:"certificate_id"`
	Stage         string   `json:"stage"`
	Details       []string `json:"details,omitempty"`
}

type CountResponse struct {
	Count int `json:"count"`
}
