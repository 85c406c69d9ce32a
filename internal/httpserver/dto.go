package httpserver

import (
	"time"

	"github.com/avolkov/usersvc/internal/models"
	"github.com/avolkov/usersvc/internal/service"
)

type signUpRequest struct {
	Login    string        `json:"login"`
	Password string        `json:"password"`
	Name     string        `json:"name"`
	Gender   models.Gender `json:"gender"`
	BirthDay *time.Time    `json:"birth_day"`
	IsAdmin  bool          `json:"is_admin"`
}

type signUpResponse struct {
	UserID string `json:"user_id"`
}

type signInRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type changeLoginRequest struct {
	NewLogin string `json:"new_login"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type putUserRequest struct {
	Name     string        `json:"name"`
	Gender   models.Gender `json:"gender"`
	BirthDay *time.Time    `json:"birth_day"`
}

type userResponse struct {
	Name     string        `json:"name"`
	Gender   models.Gender `json:"gender"`
	BirthDay *time.Time    `json:"birth_day"`
	IsActive bool          `json:"is_active"`
}

type usersResponse struct {
	Items      []userResponse `json:"items"`
	TotalCount int            `json:"total_count"`
}

func toTokenPairResponse(pair *service.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}
}

func toUserResponse(info service.UserInfo) userResponse {
	return userResponse{
		Name:     info.Name,
		Gender:   info.Gender,
		BirthDay: info.BirthDay,
		IsActive: info.IsActive,
	}
}

func toUsersResponse(infos []service.UserInfo) usersResponse {
	items := make([]userResponse, 0, len(infos))
	for _, info := range infos {
		items = append(items, toUserResponse(info))
	}
	return usersResponse{Items: items, TotalCount: len(items)}
}
