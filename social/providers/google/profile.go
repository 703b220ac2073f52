package google

import "github.com/inkwell-blog/go-auth/social"

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	Picture       string `json:"picture"`
}

func mapProfile(info *googleUserInfo) *social.SocialProfile {
	name := info.Name
	if name == "" {
		name = info.GivenName
	}
	return &social.SocialProfile{
		ProviderUserID: info.Sub,
		Provider:       "google",
		Email:          info.Email,
		EmailVerified:  info.EmailVerified,
		Name:           name,
		AvatarURL:      info.Picture,
	}
}
