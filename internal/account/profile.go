package account

import (
	"strings"

	"github.com/hitoshi/btpmatch/internal/security"
	"github.com/hitoshi/btpmatch/internal/validation"
)

// ProfileUpdate はプロフィールの部分更新。nil のフィールドは送らない。
// JSONのキーはリモートAPIのフィールド名に合わせている。
type ProfileUpdate struct {
	FirstName      *string `json:"firstName"`
	LastName       *string `json:"lastName"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	Address        *string `json:"address"`
	City           *string `json:"city"`
	ZipCode        *string `json:"zipCode"`
	Department     *string `json:"department"`
	Trade          *string `json:"trade"`
	Description    *string `json:"description"`
	CompanyName    *string `json:"companyName"`
	CompanyAddress *string `json:"companyAddress"`
	Siret          *string `json:"siret"`

	Available     *bool `json:"available"`
	Mobile        *bool `json:"mobile"`
	ShortMissions *bool `json:"shortMissions"`
	LongMissions  *bool `json:"longMissions"`
	Recruitment   *bool `json:"recruitment"`

	WebsiteURL   *string `json:"websiteUrl"`
	FacebookURL  *string `json:"facebookUrl"`
	InstagramURL *string `json:"instagramUrl"`
	LinkedinURL  *string `json:"linkedinUrl"`
}

// fields は入力を検証し、リモートAPIに送るフィールドを組み立てる。
// 外部リンクは http(s) の公開URLだけを受け付ける。
func (u ProfileUpdate) fields(san security.Sanitizer, guard URLValidator) (map[string]any, error) {
	v := validation.Violations{}
	out := make(map[string]any)

	text := func(key string, p *string, check func(string)) {
		if p == nil {
			return
		}
		val := strings.TrimSpace(*p)
		if check != nil {
			check(val)
		}
		out[key] = val
	}

	text("firstName", u.FirstName, func(s string) {
		validation.MinLength("firstName", s, 2, "Le prénom doit contenir au moins 2 caractères", v)
	})
	text("lastName", u.LastName, func(s string) {
		validation.MinLength("lastName", s, 2, "Le nom doit contenir au moins 2 caractères", v)
	})
	text("email", u.Email, func(s string) { validation.Email("email", s, v) })
	text("phone", u.Phone, func(s string) { validation.Phone("phone", s, v) })
	text("address", u.Address, nil)
	text("city", u.City, nil)
	text("zipCode", u.ZipCode, func(s string) { validation.ZipCode("zipCode", s, v) })
	text("department", u.Department, nil)
	text("trade", u.Trade, nil)
	text("companyName", u.CompanyName, func(s string) {
		validation.Required("companyName", s, "Le nom de l'entreprise est requis", v)
	})
	text("companyAddress", u.CompanyAddress, func(s string) {
		validation.Required("companyAddress", s, "L'adresse de l'entreprise est requise", v)
	})
	text("siret", u.Siret, func(s string) { validation.Siret("siret", s, v) })

	if u.Description != nil {
		out["description"] = san.HTML(strings.TrimSpace(*u.Description))
	}

	for key, p := range map[string]*bool{
		"available":     u.Available,
		"mobile":        u.Mobile,
		"shortMissions": u.ShortMissions,
		"longMissions":  u.LongMissions,
		"recruitment":   u.Recruitment,
	} {
		if p != nil {
			out[key] = *p
		}
	}

	for key, p := range map[string]*string{
		"websiteUrl":   u.WebsiteURL,
		"facebookUrl":  u.FacebookURL,
		"instagramUrl": u.InstagramURL,
		"linkedinUrl":  u.LinkedinURL,
	} {
		if p == nil {
			continue
		}
		link := strings.TrimSpace(*p)
		validation.OptionalURL(key, link, v)
		if link != "" && guard != nil {
			if _, invalid := v[key]; !invalid && guard.ValidatePublicURL(link) != nil {
				v[key] = "Ce lien n'est pas autorisé"
			}
		}
		out[key] = link
	}

	if err := v.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
