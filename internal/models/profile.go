package models

import (
	"time"
)

// Identity is the verified external identity attached to an authenticated
// request.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Profile represents a creator's application profile
type Profile struct {
	ID                        string    `json:"id" db:"id"`
	AuthID                    string    `json:"authId" db:"auth_id"` // External identity id from the auth provider
	Email                     *string   `json:"email" db:"email"`
	Username                  string    `json:"username" db:"username"`
	DisplayName               *string   `json:"displayName" db:"display_name"`
	Bio                       *string   `json:"bio" db:"bio"`
	ProfileImageURL           *string   `json:"profileImageUrl" db:"profile_image_url"`
	BannerImageURL            *string   `json:"bannerImageUrl" db:"banner_image_url"`
	PaymentAccountID          *string   `json:"paymentAccountId" db:"payment_account_id"`
	PaymentOnboardingComplete bool      `json:"paymentOnboardingComplete" db:"payment_onboarding_complete"`
	CreatedAt                 time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt                 time.Time `json:"updatedAt" db:"updated_at"`
}

// CanReceivePayments reports whether the profile has a linked payment account
// that finished onboarding.
func (p *Profile) CanReceivePayments() bool {
	return p.PaymentAccountID != nil && *p.PaymentAccountID != "" && p.PaymentOnboardingComplete
}

// ProfileInput is the validated payload of a profile-setup submission.
type ProfileInput struct {
	AuthID          string
	Email           *string
	Username        string
	DisplayName     *string
	Bio             *string
	ProfileImageURL *string
	BannerImageURL  *string
}

// ProfileRequest is the request body for creating or updating a profile
type ProfileRequest struct {
	Username        string  `json:"username"`
	DisplayName     *string `json:"displayName"`
	Bio             *string `json:"bio"`
	ProfileImageURL *string `json:"profileImageUrl"`
	BannerImageURL  *string `json:"bannerImageUrl"`
}

// PublicProfile is the subset of a profile that anyone may read. It never
// carries the payment account id.
type PublicProfile struct {
	Username           string       `json:"username"`
	DisplayName        *string      `json:"displayName"`
	Bio                *string      `json:"bio"`
	ProfileImageURL    *string      `json:"profileImageUrl"`
	BannerImageURL     *string      `json:"bannerImageUrl"`
	Links              []PublicLink `json:"links"`
	CanReceivePayments bool         `json:"canReceivePayments"`
}

type PublicLink struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// NewPublicProfile builds the public view of p and its ordered links.
func NewPublicProfile(p *Profile, links []Link) *PublicProfile {
	public := &PublicProfile{
		Username:           p.Username,
		DisplayName:        p.DisplayName,
		Bio:                p.Bio,
		ProfileImageURL:    p.ProfileImageURL,
		BannerImageURL:     p.BannerImageURL,
		Links:              make([]PublicLink, 0, len(links)),
		CanReceivePayments: p.CanReceivePayments(),
	}
	for _, l := range links {
		public.Links = append(public.Links, PublicLink{ID: l.ID, Title: l.Title, URL: l.URL})
	}
	return public
}

// ImageKind names which profile image an upload replaces.
type ImageKind string

const (
	ImageAvatar ImageKind = "avatar"
	ImageBanner ImageKind = "banner"
)

func (k ImageKind) Valid() bool {
	return k == ImageAvatar || k == ImageBanner
}
