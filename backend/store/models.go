package store

import "time"

// CookieSetting is the single persisted Bilibili operator session.
type CookieSetting struct {
	ID           int64     `json:"id"`
	Content      string    `json:"content"`
	RefreshToken string    `json:"refreshToken"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// APIErrorLog records one failed call against the upstream Bilibili API.
type APIErrorLog struct {
	ID           int64     `json:"id"`
	Endpoint     string    `json:"endpoint"`
	Method       string    `json:"method"`
	Stage        string    `json:"stage"`
	HTTPStatus   int       `json:"httpStatus"`
	RequestQuery string    `json:"requestQuery"`
	ResponseBody string    `json:"responseBody"`
	ErrorMessage string    `json:"errorMessage"`
	CreatedAt    time.Time `json:"createdAt"`
}

// LoginStatus mirrors the account status payload served to the frontend.
type LoginStatus struct {
	Status       string        `json:"status"`
	Message      string        `json:"message,omitempty"`
	QrCodeStatus *QrCodeStatus `json:"qrCodeStatus,omitempty"`
}

const (
	AccountStatusNotLogin = "not_login"
	AccountStatusLogging  = "logging"
	AccountStatusLogged   = "logged"
)

// QrCodeStatus tracks one in-flight QR code login attempt.
type QrCodeStatus struct {
	QrCode              string `json:"qrCode"`
	QrCodeKey           string `json:"qrCodeKey"`
	QrCodeEffectiveTime int    `json:"qrCodeEffectiveTime"`
	IsScaned            bool   `json:"isScaned"`
	IsLogged            bool   `json:"isLogged"`
	Message             string `json:"message"`
	RefreshToken        string `json:"refreshToken,omitempty"`
}
