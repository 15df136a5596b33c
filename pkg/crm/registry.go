package crm

import (
	"sort"
	"strings"
)

type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry returns a registry with every supported entity adapter.
func NewRegistry() *Registry {
	r := &Registry{adapters: map[string]Adapter{}}
	r.Register(crmEntity{base: base{EntityContact}, prefix: "crm.contact"})
	r.Register(crmEntity{base: base{EntityCompany}, prefix: "crm.company"})
	r.Register(user{base{EntityUser}})
	r.Register(smartProcess{base{EntitySmartProcess}})
	r.Register(list{base{EntityList}})
	r.Register(crmStatus{base{EntityCrmStatus}})
	r.Register(address{base: base{EntityContactAddress}, ownerTypeID: 3})
	r.Register(address{base: base{EntityCompanyAddress}, ownerTypeID: 4})
	r.Register(iblockSection{base{EntityIblockSection}})
	r.Register(crmCategory{base{EntityCrmCategory}})
	r.Register(field{base: base{EntityField}, registry: r})
	return r
}

func (r *Registry) Register(a Adapter) {
	r.adapters[a.Tag()] = a
}

// Get returns the adapter for a tag. Tags are matched case-insensitively.
func (r *Registry) Get(tag string) (Adapter, error) {
	a, ok := r.adapters[strings.ToUpper(strings.TrimSpace(tag))]
	if !ok {
		return nil, unsupported(tag, CapabilityAdapter)
	}
	return a, nil
}

func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.adapters))
	for tag := range r.adapters {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
