package adminapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Scanner is the scanner module subscription of a store.
type Scanner struct {
	Active bool   `json:"active"`
	Beta   bool   `json:"beta"`
	Days   int    `json:"days"`
	Expire string `json:"expire,omitempty"`
}

// Store is a retail store in the API wire format.
type Store struct {
	ID           string   `json:"_id,omitempty"`
	CNPJ         string   `json:"cnpj"`
	Serial       string   `json:"serial,omitempty"`
	Company      string   `json:"company"`
	TradeName    string   `json:"tradeName"`
	Phone        string   `json:"phone"`
	Email        string   `json:"email"`
	Street       string   `json:"street"`
	Neighborhood string   `json:"neighborhood"`
	Number       string   `json:"number"`
	City         string   `json:"city"`
	CityCode     int      `json:"cityCode"`
	State        string   `json:"state"`
	StateCode    int      `json:"stateCode"`
	Partner      string   `json:"partner"`
	CodePartner  int      `json:"codePartner"`
	Segment      string   `json:"segment"`
	Size         string   `json:"size"`
	Active       bool     `json:"active"`
	Lucrability  bool     `json:"lucrability"`
	Offerta      bool     `json:"offerta"`
	Oppinar      bool     `json:"oppinar"`
	Prazzo       bool     `json:"prazzo"`
	Scanner      Scanner  `json:"scanner"`
	Operation    []int    `json:"operation,omitempty"`
	Users        []string `json:"users,omitempty"`
	CreatedAt    string   `json:"createAt,omitempty"`
}

// StoreUser is a user linked to a store, as returned by the by-ids lookup.
type StoreUser struct {
	ID        string `json:"_id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Code      string `json:"code,omitempty"`
	CellPhone string `json:"cellPhone,omitempty"`
	Term      bool   `json:"term,omitempty"`
	Active    bool   `json:"active,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	Partner   string `json:"partner,omitempty"`
}

// MobileUser is an app user. Type is one of Support, Admin, Operador, Gerente.
type MobileUser struct {
	ID       string `json:"_id,omitempty"`
	Type     string `json:"_type"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Term     bool   `json:"term,omitempty"`
	Active   bool   `json:"active"`
	Inclusao string `json:"inclusao,omitempty"`
	Partner  string `json:"partner"`
	// Stores holds the ids of the stores the user can operate.
	Stores   []string `json:"lojas,omitempty"`
	Password string   `json:"password,omitempty"`
}

// UserStore is a store as listed for a mobile user.
type UserStore struct {
	ID           string `json:"_id,omitempty"`
	Serial       string `json:"serial"`
	Name         string `json:"name"`
	CNPJ         string `json:"cnpj"`
	Lucrability  bool   `json:"lucrability,omitempty"`
	Offerta      bool   `json:"offerta,omitempty"`
	Oppinar      bool   `json:"oppinar,omitempty"`
	Prazzo       bool   `json:"prazzo,omitempty"`
	NomeFantasia string `json:"nomeFantasia,omitempty"`
	RazaoSocial  string `json:"razaoSocial,omitempty"`
}

// MobileUserWithStores pairs a user with the stores it is linked to.
type MobileUserWithStores struct {
	User   *MobileUser
	Stores []UserStore
}

// SupportUser is a back-office support account.
type SupportUser struct {
	ID       string `json:"_id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Partner  string `json:"partner"`
	Active   bool   `json:"active"`
	Inclusao string `json:"inclusao,omitempty"`
	Password string `json:"password,omitempty"`
}

// PartnerCode is a partner code the API sends as a number, a string or null.
type PartnerCode string

func (c *PartnerCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = PartnerCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("partner code: %w", err)
	}
	*c = PartnerCode(n.String())
	return nil
}

// MarshalJSON emits numeric codes as numbers.
func (c PartnerCode) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(c), 10, 64); err == nil {
		return []byte(c), nil
	}
	return json.Marshal(string(c))
}

// Partner is an automation partner.
type Partner struct {
	ID   string      `json:"_id,omitempty"`
	Name string      `json:"name"`
	Code PartnerCode `json:"code"`
}

// PartnerRequest is the create/update payload for partners.
type PartnerRequest struct {
	Name string      `json:"name"`
	Code PartnerCode `json:"code"`
}

type State struct {
	Name      string   `json:"name"`
	Code      string   `json:"code"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type City struct {
	Name      string `json:"name"`
	Code      string `json:"code"`
	State     string `json:"state,omitempty"`
	StateCode string `json:"stateCode,omitempty"`
}

type Segment struct {
	Description string `json:"description"`
}

type Size struct {
	Description string `json:"description"`
	Value       string `json:"value"`
}

// ReferenceData is the lookup data the store forms need.
type ReferenceData struct {
	Partners []Partner
	States   []State
	Segments []Segment
	Sizes    []Size
}

type DashboardStats struct {
	ActiveStores  int    `json:"activeStores"`
	MobileUsers   int    `json:"mobileUsers"`
	TotalBasics   int    `json:"totalBasics"`
	TotalPartners int    `json:"totalPartners"`
	Date          string `json:"date"`
}

// Activity is a recent change. Type is store, mobile or support.
type Activity struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type DashboardOverview struct {
	Stats    DashboardStats
	Activity []Activity
}

type PartnerCount struct {
	Partner string `json:"partner"`
	Count   int    `json:"count"`
}

type ModuleStats struct {
	Offerta int `json:"offerta"`
	Oppinar int `json:"oppinar"`
	Prazzo  int `json:"prazzo"`
	Scanner int `json:"scanner"`
}

type ReportSummary struct {
	TotalStores      int            `json:"totalStores"`
	ActiveStores     int            `json:"activeStores"`
	InactiveStores   int            `json:"inactiveStores"`
	TotalMobileUsers int            `json:"totalMobileUsers"`
	TotalSupport     int            `json:"totalSupport"`
	StoresByPartner  []PartnerCount `json:"storesByPartner"`
	ModuleStats      ModuleStats    `json:"moduleStats"`
	Date             string         `json:"date"`
}

type StoreReportItem struct {
	ID         string `json:"_id"`
	CNPJ       string `json:"cnpj"`
	Name       string `json:"name"`
	Company    string `json:"company"`
	Partner    string `json:"partner"`
	City       string `json:"city"`
	State      string `json:"state"`
	Active     bool   `json:"active"`
	Offerta    bool   `json:"offerta"`
	Oppinar    bool   `json:"oppinar"`
	Prazzo     bool   `json:"prazzo"`
	HasScanner bool   `json:"hasScanner"`
	CreatedAt  string `json:"createdAt"`
}

// StoresReport is one page of the stores report.
type StoresReport struct {
	Data       []StoreReportItem `json:"data"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
}

// ReportFilters narrows the stores report. Partner "all" means no filter;
// Active is "true", "false" or "".
type ReportFilters struct {
	Page    int
	Limit   int
	Partner string
	Active  string
}
