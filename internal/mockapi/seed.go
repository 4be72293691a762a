package mockapi

import (
	"time"

	"margem/internal/adminapi"
)

// Seeded operator accounts.
const (
	DefaultAdminEmail      = "admin@margem.com.br"
	DefaultAdminPassword   = "admin123"
	DefaultPartnerEmail    = "parceiro@margem.com.br"
	DefaultPartnerPassword = "parceiro123"
	DefaultPartnerName     = "Linx"
)

// SeedDataset builds a dataset with operators, stores and users for local
// development.
func SeedDataset(now func() time.Time) (*Dataset, error) {
	d := NewDataset(now)

	admin, err := NewAdmin(1, "Administrador", DefaultAdminEmail, "", DefaultAdminPassword)
	if err != nil {
		return nil, err
	}
	d.AddAdmin(admin)
	partner, err := NewAdmin(2, "Operador Linx", DefaultPartnerEmail, DefaultPartnerName, DefaultPartnerPassword)
	if err != nil {
		return nil, err
	}
	d.AddAdmin(partner)

	stores := []adminapi.Store{
		{
			CNPJ: "11222333000181", Company: "Mercado Bom Preco LTDA", TradeName: "Bom Preco",
			Phone: "11987654321", Email: "contato@bompreco.com.br", Street: "Rua das Flores",
			Neighborhood: "Centro", Number: "100", City: "São Paulo", CityCode: 3550308,
			State: "SP", StateCode: 35, Partner: "Linx", CodePartner: 101,
			Segment: "Supermercado", Size: "M", Active: true, Offerta: true, Oppinar: true,
			Scanner: adminapi.Scanner{Active: true, Days: 30},
		},
		{
			CNPJ: "44555666000199", Company: "Farmacia Vida SA", TradeName: "Farma Vida",
			Phone: "21912345678", Email: "adm@farmavida.com.br", Street: "Av. Atlantica",
			Neighborhood: "Copacabana", Number: "2000", City: "Rio de Janeiro", CityCode: 3304557,
			State: "RJ", StateCode: 33, Partner: "Totvs", CodePartner: 202,
			Segment: "Farmacia", Size: "G", Active: true, Prazzo: true,
		},
		{
			CNPJ: "77888999000155", Company: "Padaria Trigo Dourado ME", TradeName: "Trigo Dourado",
			Phone: "31933334444", Street: "Rua da Bahia", Neighborhood: "Lourdes", Number: "45",
			City: "Belo Horizonte", CityCode: 3106200, State: "MG", StateCode: 31,
			Partner: "Linx", CodePartner: 101, Segment: "Padaria", Size: "P",
		},
	}
	for _, s := range stores {
		if _, err := d.CreateStore(s); err != nil {
			return nil, err
		}
	}

	users := []adminapi.MobileUser{
		{Type: "Gerente", Name: "Maria Souza", Email: "maria@bompreco.com.br", Phone: "11999990000", Active: true, Term: true, Partner: "Linx"},
		{Type: "Operador", Name: "Joao Lima", Email: "joao@farmavida.com.br", Phone: "21988887777", Active: true, Partner: "Totvs"},
	}
	for _, u := range users {
		if _, err := d.CreateMobileUser(u); err != nil {
			return nil, err
		}
	}
	if err := d.LinkStore("maria@bompreco.com.br", "11222333000181"); err != nil {
		return nil, err
	}
	if err := d.LinkStore("joao@farmavida.com.br", "44555666000199"); err != nil {
		return nil, err
	}

	if _, err := d.CreateSupportUser(adminapi.SupportUser{
		Name: "Suporte Margem", Email: "suporte@margem.com.br", Partner: "", Active: true,
	}); err != nil {
		return nil, err
	}
	return d, nil
}

func seedPartners() []adminapi.Partner {
	return []adminapi.Partner{
		{ID: "6501a0c2e4b0f1a2b3c4d501", Name: "Linx", Code: "101"},
		{ID: "6501a0c2e4b0f1a2b3c4d502", Name: "Totvs", Code: "202"},
		{ID: "6501a0c2e4b0f1a2b3c4d503", Name: "Sem integracao"},
	}
}

func seedStates() []adminapi.State {
	lat := func(v float64) *float64 { return &v }
	return []adminapi.State{
		{Name: "São Paulo", Code: "35", Latitude: lat(-23.55), Longitude: lat(-46.64)},
		{Name: "Rio de Janeiro", Code: "33", Latitude: lat(-22.91), Longitude: lat(-43.17)},
		{Name: "Minas Gerais", Code: "31", Latitude: lat(-19.92), Longitude: lat(-43.94)},
	}
}

func seedCities() map[string][]adminapi.City {
	return map[string][]adminapi.City{
		"35": {
			{Name: "São Paulo", Code: "3550308", State: "SP", StateCode: "35"},
			{Name: "Campinas", Code: "3509502", State: "SP", StateCode: "35"},
			{Name: "Santos", Code: "3548500", State: "SP", StateCode: "35"},
		},
		"33": {
			{Name: "Rio de Janeiro", Code: "3304557", State: "RJ", StateCode: "33"},
			{Name: "Niterói", Code: "3303302", State: "RJ", StateCode: "33"},
		},
		"31": {
			{Name: "Belo Horizonte", Code: "3106200", State: "MG", StateCode: "31"},
		},
	}
}

func seedSegments() []adminapi.Segment {
	return []adminapi.Segment{
		{Description: "Supermercado"},
		{Description: "Farmacia"},
		{Description: "Padaria"},
		{Description: "Conveniencia"},
	}
}

func seedSizes() []adminapi.Size {
	return []adminapi.Size{
		{Description: "Pequeno", Value: "P"},
		{Description: "Medio", Value: "M"},
		{Description: "Grande", Value: "G"},
	}
}
