package model

import "encoding/json"

// RemoteUserProfile: проекция записи пользователя из сервиса идентификации.
// Сами профили этот сервис не создаёт и не меняет.
type RemoteUserProfile struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	Contact     string `json:"contact"`
	Status      int    `json:"status"`
	Bio         string `json:"bio"`
	AvatarRef   string `json:"avatarRef"`
}

// UnmarshalJSON понимает и текущие имена полей, и старые (username, email, imageId).
func (p *RemoteUserProfile) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          int64            `json:"id"`
		DisplayName *string          `json:"displayName"`
		Username    *string          `json:"username"`
		Contact     *string          `json:"contact"`
		Email       *string          `json:"email"`
		Status      *int             `json:"status"`
		Bio         *string          `json:"bio"`
		AvatarRef   *json.RawMessage `json:"avatarRef"`
		ImageID     *json.RawMessage `json:"imageId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = RemoteUserProfile{ID: raw.ID}
	p.DisplayName = firstString(raw.DisplayName, raw.Username)
	p.Contact = firstString(raw.Contact, raw.Email)
	if raw.Status != nil {
		p.Status = *raw.Status
	}
	if raw.Bio != nil {
		p.Bio = *raw.Bio
	}
	p.AvatarRef = firstRef(raw.AvatarRef, raw.ImageID)
	return nil
}

func firstString(vals ...*string) string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

// firstRef возвращает первую непустую ссылку; числовой imageId превращается в строку цифр.
func firstRef(vals ...*json.RawMessage) string {
	for _, v := range vals {
		if v == nil || string(*v) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(*v, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(*v, &n); err == nil {
			return n.String()
		}
	}
	return ""
}
