package github

import (
	"strconv"

	"github.com/inkwell-blog/go-auth/social"
)

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func mapProfile(user *githubUser, email string, emailVerified bool) *social.SocialProfile {
	profile := &social.SocialProfile{
		Provider:      "github",
		Email:         email,
		EmailVerified: emailVerified,
		Name:          user.Name,
		Username:      user.Login,
		AvatarURL:     user.AvatarURL,
	}
	if user.ID != 0 {
		profile.ProviderUserID = strconv.FormatInt(user.ID, 10)
	}
	return profile
}
