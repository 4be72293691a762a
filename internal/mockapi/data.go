package mockapi

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"margem/internal/adminapi"
)

const maxActivity = 50

// Admin is a panel operator allowed to log in.
type Admin struct {
	ID           int
	Name         string
	Email        string
	Partner      string
	PasswordHash []byte
}

// NewAdmin hashes password with bcrypt.
func NewAdmin(id int, name, email, partner, password string) (Admin, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Admin{}, fmt.Errorf("hash password for %s: %w", email, err)
	}
	return Admin{ID: id, Name: name, Email: strings.ToLower(email), Partner: partner, PasswordHash: hash}, nil
}

// Dataset is the in-memory state behind the mock admin API. It is safe for
// concurrent use.
type Dataset struct {
	mu       sync.RWMutex
	now      func() time.Time
	admins   map[string]Admin
	stores   []*adminapi.Store
	mobile   []*adminapi.MobileUser
	support  []*adminapi.SupportUser
	partners []adminapi.Partner
	states   []adminapi.State
	cities   map[string][]adminapi.City
	segments []adminapi.Segment
	sizes    []adminapi.Size
	activity []adminapi.Activity
}

// NewDataset returns an empty dataset with the fixed reference tables loaded.
func NewDataset(now func() time.Time) *Dataset {
	if now == nil {
		now = time.Now
	}
	return &Dataset{
		now:      now,
		admins:   make(map[string]Admin),
		partners: seedPartners(),
		states:   seedStates(),
		cities:   seedCities(),
		segments: seedSegments(),
		sizes:    seedSizes(),
	}
}

// AddAdmin registers an operator account.
func (d *Dataset) AddAdmin(a Admin) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.admins[strings.ToLower(a.Email)] = a
}

func (d *Dataset) admin(email string) (Admin, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.admins[strings.ToLower(strings.TrimSpace(email))]
	return a, ok
}

func (d *Dataset) timestamp() string {
	return d.now().UTC().Format(time.RFC3339)
}

// record must be called with d.mu held.
func (d *Dataset) record(kind, message string) {
	d.activity = append(d.activity, adminapi.Activity{Type: kind, Message: message, Timestamp: d.timestamp()})
	if len(d.activity) > maxActivity {
		d.activity = d.activity[len(d.activity)-maxActivity:]
	}
}

// Stores

func (d *Dataset) storeByCNPJLocked(cnpj string) *adminapi.Store {
	for _, s := range d.stores {
		if s.CNPJ == cnpj {
			return s
		}
	}
	return nil
}

func (d *Dataset) storeByIDLocked(id string) *adminapi.Store {
	for _, s := range d.stores {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (d *Dataset) StoreByCNPJ(cnpj string) (adminapi.Store, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := d.storeByCNPJLocked(cnpj)
	if s == nil {
		return adminapi.Store{}, errNotFound("Loja nao encontrada")
	}
	return cloneStore(s), nil
}

func (d *Dataset) CreateStore(s adminapi.Store) (adminapi.Store, error) {
	if strings.TrimSpace(s.CNPJ) == "" {
		return adminapi.Store{}, errInvalid("CNPJ obrigatorio")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.storeByCNPJLocked(s.CNPJ) != nil {
		return adminapi.Store{}, errConflict("CNPJ ja cadastrado")
	}
	s.ID = uuid.NewString()
	s.Serial = strings.ToUpper(uuid.NewString()[:8])
	s.CreatedAt = d.timestamp()
	d.stores = append(d.stores, &s)
	d.record("store", "Loja "+storeName(&s)+" cadastrada")
	return cloneStore(&s), nil
}

// UpdateStore replaces the editable fields of the store with id.
func (d *Dataset) UpdateStore(id string, s adminapi.Store) (adminapi.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	existing := d.storeByIDLocked(id)
	if existing == nil {
		return adminapi.Store{}, errNotFound("Loja nao encontrada")
	}
	if s.CNPJ != "" && s.CNPJ != existing.CNPJ && d.storeByCNPJLocked(s.CNPJ) != nil {
		return adminapi.Store{}, errConflict("CNPJ ja cadastrado")
	}
	s.ID, s.Serial, s.CreatedAt = existing.ID, existing.Serial, existing.CreatedAt
	if s.CNPJ == "" {
		s.CNPJ = existing.CNPJ
	}
	if s.Users == nil {
		s.Users = existing.Users
	}
	*existing = s
	d.record("store", "Loja "+storeName(existing)+" atualizada")
	return cloneStore(existing), nil
}

func (d *Dataset) DeleteStore(cnpj string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.storeByCNPJLocked(cnpj)
	if s == nil {
		return errNotFound("Loja nao encontrada")
	}
	d.stores = slices.DeleteFunc(d.stores, func(x *adminapi.Store) bool { return x == s })
	for _, u := range d.mobile {
		u.Stores = slices.DeleteFunc(u.Stores, func(id string) bool { return id == s.ID })
	}
	d.record("store", "Loja "+storeName(s)+" removida")
	return nil
}

// Mobile users

func (d *Dataset) mobileByLocked(match func(*adminapi.MobileUser) bool) *adminapi.MobileUser {
	for _, u := range d.mobile {
		if match(u) {
			return u
		}
	}
	return nil
}

func byEmail(email string) func(*adminapi.MobileUser) bool {
	return func(u *adminapi.MobileUser) bool { return strings.EqualFold(u.Email, email) }
}

func byPhone(phone string) func(*adminapi.MobileUser) bool {
	return func(u *adminapi.MobileUser) bool { return u.Phone == phone }
}

func byMobileID(id string) func(*adminapi.MobileUser) bool {
	return func(u *adminapi.MobileUser) bool { return u.ID == id }
}

// MobileUser looks a user up by email or phone; ok is false when none matches.
func (d *Dataset) MobileUser(email, phone string) (adminapi.MobileUser, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var u *adminapi.MobileUser
	switch {
	case email != "":
		u = d.mobileByLocked(byEmail(email))
	case phone != "":
		u = d.mobileByLocked(byPhone(phone))
	}
	if u == nil {
		return adminapi.MobileUser{}, false
	}
	return publicMobile(u), true
}

func (d *Dataset) CreateMobileUser(u adminapi.MobileUser) (adminapi.MobileUser, error) {
	if strings.TrimSpace(u.Email) == "" {
		return adminapi.MobileUser{}, errInvalid("Email obrigatorio")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mobileByLocked(byEmail(u.Email)) != nil {
		return adminapi.MobileUser{}, errConflict("Email ja cadastrado")
	}
	u.ID = uuid.NewString()
	u.Inclusao = d.timestamp()
	d.mobile = append(d.mobile, &u)
	d.record("mobile", "Usuario "+u.Email+" cadastrado")
	return publicMobile(&u), nil
}

func (d *Dataset) UpdateMobileUser(id string, u adminapi.MobileUser) (adminapi.MobileUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	existing := d.mobileByLocked(byMobileID(id))
	if existing == nil {
		return adminapi.MobileUser{}, errNotFound("Usuario nao encontrado")
	}
	u.ID, u.Inclusao = existing.ID, existing.Inclusao
	if u.Email == "" {
		u.Email = existing.Email
	}
	if u.Password == "" {
		u.Password = existing.Password
	}
	if u.Stores == nil {
		u.Stores = existing.Stores
	}
	*existing = u
	d.record("mobile", "Usuario "+u.Email+" atualizado")
	return publicMobile(existing), nil
}

func (d *Dataset) DeleteMobileUser(email string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := d.mobileByLocked(byEmail(email))
	if u == nil {
		return errNotFound("Usuario nao encontrado")
	}
	d.mobile = slices.DeleteFunc(d.mobile, func(x *adminapi.MobileUser) bool { return x == u })
	for _, s := range d.stores {
		s.Users = slices.DeleteFunc(s.Users, func(id string) bool { return id == u.ID })
	}
	d.record("mobile", "Usuario "+u.Email+" removido")
	return nil
}

// UserStores lists the stores linked to the user with id.
func (d *Dataset) UserStores(userID string) ([]adminapi.UserStore, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u := d.mobileByLocked(byMobileID(userID))
	if u == nil {
		return nil, errNotFound("Usuario nao encontrado")
	}
	out := make([]adminapi.UserStore, 0, len(u.Stores))
	for _, id := range u.Stores {
		if s := d.storeByIDLocked(id); s != nil {
			out = append(out, adminapi.UserStore{
				ID:           s.ID,
				Serial:       s.Serial,
				Name:         storeName(s),
				CNPJ:         s.CNPJ,
				Lucrability:  s.Lucrability,
				Offerta:      s.Offerta,
				Oppinar:      s.Oppinar,
				Prazzo:       s.Prazzo,
				NomeFantasia: s.TradeName,
				RazaoSocial:  s.Company,
			})
		}
	}
	return out, nil
}

// LinkStore links the store with cnpj to the user with email in both
// directions. Linking twice is a no-op.
func (d *Dataset) LinkStore(email, cnpj string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, s, err := d.userAndStoreLocked(email, cnpj)
	if err != nil {
		return err
	}
	if !slices.Contains(u.Stores, s.ID) {
		u.Stores = append(u.Stores, s.ID)
	}
	if !slices.Contains(s.Users, u.ID) {
		s.Users = append(s.Users, u.ID)
	}
	d.record("mobile", "Loja "+storeName(s)+" vinculada a "+u.Email)
	return nil
}

func (d *Dataset) UnlinkStore(email, cnpj string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, s, err := d.userAndStoreLocked(email, cnpj)
	if err != nil {
		return err
	}
	u.Stores = slices.DeleteFunc(u.Stores, func(id string) bool { return id == s.ID })
	s.Users = slices.DeleteFunc(s.Users, func(id string) bool { return id == u.ID })
	d.record("mobile", "Loja "+storeName(s)+" desvinculada de "+u.Email)
	return nil
}

func (d *Dataset) userAndStoreLocked(email, cnpj string) (*adminapi.MobileUser, *adminapi.Store, error) {
	u := d.mobileByLocked(byEmail(email))
	if u == nil {
		return nil, nil, errNotFound("Usuario nao encontrado")
	}
	s := d.storeByCNPJLocked(cnpj)
	if s == nil {
		return nil, nil, errNotFound("Loja nao encontrada")
	}
	return u, s, nil
}

// UsersByIDs resolves mobile user ids, skipping unknown ones.
func (d *Dataset) UsersByIDs(ids []string) []adminapi.StoreUser {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]adminapi.StoreUser, 0, len(ids))
	for _, id := range ids {
		if u := d.mobileByLocked(byMobileID(id)); u != nil {
			out = append(out, adminapi.StoreUser{
				ID:        u.ID,
				Type:      u.Type,
				Name:      u.Name,
				Email:     u.Email,
				CellPhone: u.Phone,
				Term:      u.Term,
				Active:    u.Active,
				CreatedAt: u.Inclusao,
				Partner:   u.Partner,
			})
		}
	}
	return out
}

// Support users

func (d *Dataset) supportLocked(email string) *adminapi.SupportUser {
	for _, u := range d.support {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func (d *Dataset) SupportUser(email string) (adminapi.SupportUser, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u := d.supportLocked(email)
	if u == nil {
		return adminapi.SupportUser{}, false
	}
	out := *u
	out.Password = ""
	return out, true
}

func (d *Dataset) CreateSupportUser(u adminapi.SupportUser) (adminapi.SupportUser, error) {
	if strings.TrimSpace(u.Email) == "" {
		return adminapi.SupportUser{}, errInvalid("Email obrigatorio")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.supportLocked(u.Email) != nil {
		return adminapi.SupportUser{}, errConflict("Email ja cadastrado")
	}
	u.ID = uuid.NewString()
	u.Inclusao = d.timestamp()
	d.support = append(d.support, &u)
	d.record("support", "Suporte "+u.Email+" cadastrado")
	out := u
	out.Password = ""
	return out, nil
}

// UpdateSupportUser updates the support user identified by u.Email.
func (d *Dataset) UpdateSupportUser(u adminapi.SupportUser) (adminapi.SupportUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	existing := d.supportLocked(u.Email)
	if existing == nil {
		return adminapi.SupportUser{}, errNotFound("Usuario nao encontrado")
	}
	u.ID, u.Inclusao = existing.ID, existing.Inclusao
	if u.Password == "" {
		u.Password = existing.Password
	}
	*existing = u
	d.record("support", "Suporte "+u.Email+" atualizado")
	out := u
	out.Password = ""
	return out, nil
}

func (d *Dataset) DeleteSupportUser(email string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := d.supportLocked(email)
	if u == nil {
		return errNotFound("Usuario nao encontrado")
	}
	d.support = slices.DeleteFunc(d.support, func(x *adminapi.SupportUser) bool { return x == u })
	d.record("support", "Suporte "+u.Email+" removido")
	return nil
}

// Partners

func (d *Dataset) Partners() []adminapi.Partner {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.partners)
}

// Partner finds a partner by code or id.
func (d *Dataset) Partner(key string) (adminapi.Partner, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i := d.partnerIndexLocked(key); i >= 0 {
		return d.partners[i], nil
	}
	return adminapi.Partner{}, errNotFound("Parceiro nao encontrado")
}

func (d *Dataset) partnerIndexLocked(key string) int {
	return slices.IndexFunc(d.partners, func(p adminapi.Partner) bool {
		return p.ID == key || (p.Code != "" && string(p.Code) == key)
	})
}

func (d *Dataset) CreatePartner(req adminapi.PartnerRequest) (adminapi.Partner, error) {
	if strings.TrimSpace(req.Name) == "" {
		return adminapi.Partner{}, errInvalid("Nome obrigatorio")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if req.Code != "" && d.partnerIndexLocked(string(req.Code)) >= 0 {
		return adminapi.Partner{}, errConflict("Codigo de parceiro ja cadastrado")
	}
	p := adminapi.Partner{ID: uuid.NewString(), Name: req.Name, Code: req.Code}
	d.partners = append(d.partners, p)
	return p, nil
}

func (d *Dataset) UpdatePartner(id string, req adminapi.PartnerRequest) (adminapi.Partner, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := slices.IndexFunc(d.partners, func(p adminapi.Partner) bool { return p.ID == id })
	if i < 0 {
		return adminapi.Partner{}, errNotFound("Parceiro nao encontrado")
	}
	if req.Name != "" {
		d.partners[i].Name = req.Name
	}
	d.partners[i].Code = req.Code
	return d.partners[i], nil
}

func (d *Dataset) DeletePartner(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.partners)
	d.partners = slices.DeleteFunc(d.partners, func(p adminapi.Partner) bool { return p.ID == id })
	if len(d.partners) == n {
		return errNotFound("Parceiro nao encontrado")
	}
	return nil
}

// Reference data

func (d *Dataset) States() []adminapi.State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.states)
}

// Cities lists the cities of a state, matched by IBGE code or abbreviation.
// An empty state lists every city.
func (d *Dataset) Cities(state string) []adminapi.City {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if state == "" {
		var all []adminapi.City
		for _, cities := range d.cities {
			all = append(all, cities...)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
		return all
	}
	if cities, ok := d.cities[state]; ok {
		return slices.Clone(cities)
	}
	for code, cities := range d.cities {
		if len(cities) > 0 && strings.EqualFold(cities[0].State, state) {
			return slices.Clone(d.cities[code])
		}
	}
	return []adminapi.City{}
}

func (d *Dataset) Segments() []adminapi.Segment {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.segments)
}

func (d *Dataset) Sizes() []adminapi.Size {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.sizes)
}

// Dashboard and reports

func (d *Dataset) Stats() adminapi.DashboardStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	stats := adminapi.DashboardStats{
		MobileUsers:   len(d.mobile),
		TotalPartners: len(d.partners),
		Date:          d.timestamp(),
	}
	for _, s := range d.stores {
		if s.Active {
			stats.ActiveStores++
		}
		if !s.Offerta && !s.Oppinar && !s.Prazzo && !s.Scanner.Active {
			stats.TotalBasics++
		}
	}
	return stats
}

// RecentActivity returns up to limit entries, newest first.
func (d *Dataset) RecentActivity(limit int) []adminapi.Activity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]adminapi.Activity, 0, min(limit, len(d.activity)))
	for i := len(d.activity) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, d.activity[i])
	}
	return out
}

func (d *Dataset) Summary() adminapi.ReportSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sum := adminapi.ReportSummary{
		TotalStores:      len(d.stores),
		TotalMobileUsers: len(d.mobile),
		TotalSupport:     len(d.support),
		Date:             d.timestamp(),
	}
	byPartner := make(map[string]int)
	for _, s := range d.stores {
		if s.Active {
			sum.ActiveStores++
		} else {
			sum.InactiveStores++
		}
		byPartner[s.Partner]++
		if s.Offerta {
			sum.ModuleStats.Offerta++
		}
		if s.Oppinar {
			sum.ModuleStats.Oppinar++
		}
		if s.Prazzo {
			sum.ModuleStats.Prazzo++
		}
		if s.Scanner.Active {
			sum.ModuleStats.Scanner++
		}
	}
	sum.StoresByPartner = make([]adminapi.PartnerCount, 0, len(byPartner))
	for partner, n := range byPartner {
		sum.StoresByPartner = append(sum.StoresByPartner, adminapi.PartnerCount{Partner: partner, Count: n})
	}
	sort.Slice(sum.StoresByPartner, func(i, j int) bool {
		return sum.StoresByPartner[i].Partner < sum.StoresByPartner[j].Partner
	})
	return sum
}

// StoresReport pages through stores in creation order. partner "" matches
// every partner; active is "true", "false" or "".
func (d *Dataset) StoresReport(page, limit int, partner, active string) adminapi.StoresReport {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var items []adminapi.StoreReportItem
	for _, s := range d.stores {
		if partner != "" && s.Partner != partner {
			continue
		}
		if active != "" && fmt.Sprint(s.Active) != active {
			continue
		}
		items = append(items, adminapi.StoreReportItem{
			ID:         s.ID,
			CNPJ:       s.CNPJ,
			Name:       storeName(s),
			Company:    s.Company,
			Partner:    s.Partner,
			City:       s.City,
			State:      s.State,
			Active:     s.Active,
			Offerta:    s.Offerta,
			Oppinar:    s.Oppinar,
			Prazzo:     s.Prazzo,
			HasScanner: s.Scanner.Active,
			CreatedAt:  s.CreatedAt,
		})
	}

	report := adminapi.StoresReport{
		Data:       []adminapi.StoreReportItem{},
		Total:      len(items),
		Page:       page,
		Limit:      limit,
		TotalPages: (len(items) + limit - 1) / limit,
	}
	start := (page - 1) * limit
	if start < len(items) {
		report.Data = items[start:min(start+limit, len(items))]
	}
	return report
}

func storeName(s *adminapi.Store) string {
	if s.TradeName != "" {
		return s.TradeName
	}
	return s.Company
}

func cloneStore(s *adminapi.Store) adminapi.Store {
	out := *s
	out.Operation = slices.Clone(s.Operation)
	out.Users = slices.Clone(s.Users)
	return out
}

func publicMobile(u *adminapi.MobileUser) adminapi.MobileUser {
	out := *u
	out.Password = ""
	out.Stores = slices.Clone(u.Stores)
	return out
}
