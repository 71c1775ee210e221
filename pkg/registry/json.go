package registry

import (
	"encoding/json"
)

// Soft-deletable entities expose a derived isActive flag next to status.

func (s Service) MarshalJSON() ([]byte, error) {
	type alias Service
	return json.Marshal(struct {
		alias
		IsActive bool `json:"isActive"`
	}{alias(s), s.Status.IsActive()})
}

func (u User) MarshalJSON() ([]byte, error) {
	type alias User
	return json.Marshal(struct {
		alias
		IsActive bool `json:"isActive"`
	}{alias(u), u.Status.IsActive()})
}

func (a Admin) MarshalJSON() ([]byte, error) {
	type alias Admin
	return json.Marshal(struct {
		alias
		IsActive bool `json:"isActive"`
	}{alias(a), a.Status.IsActive()})
}

func (c Council) MarshalJSON() ([]byte, error) {
	type alias Council
	return json.Marshal(struct {
		alias
		IsActive bool `json:"isActive"`
	}{alias(c), c.Status.IsActive()})
}

func (c Contact) MarshalJSON() ([]byte, error) {
	type alias Contact
	return json.Marshal(struct {
		alias
		IsActive bool `json:"isActive"`
	}{alias(c), c.Status.IsActive()})
}
