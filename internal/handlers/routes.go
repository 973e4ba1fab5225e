package handlers

import (
	"net/http"

	"github.com/inkleaf/backend/internal/chat"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := NewHealthHandler()
	auth := AuthHandler{Users: deps.Users, Profiles: deps.Profiles, Sessions: deps.Sessions, Limiter: deps.AuthLimiter}
	account := AccountHandler{Users: deps.Users, Sessions: deps.Sessions, Purger: deps.SessionPurger}
	profiles := ProfileHandler{Profiles: deps.Profiles, Sessions: deps.Sessions, Media: deps.Media}
	friendships := FriendHandler{Registries: deps.Registries, Sessions: deps.Sessions}
	stories := StoryHandler{Stories: deps.Stories, Sessions: deps.Sessions}
	diary := DiaryHandler{Diary: deps.Diary, Sessions: deps.Sessions}
	poems := PoemHandler{Poems: deps.Poems, Sessions: deps.Sessions}
	novels := NovelHandler{Novels: deps.Novels, Sessions: deps.Sessions}
	chatH := ChatHandler{Hub: deps.Chat, Profiles: deps.Profiles, Sessions: deps.Sessions}
	creditsH := CreditHandler{Credits: deps.Credits, Sessions: deps.Sessions}
	reports := ReportHandler{Reports: deps.Reports, Sessions: deps.Sessions}

	mux.HandleFunc("/healthz", health.Handle)

	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/auth/logout", auth.Logout)
	mux.HandleFunc("/api/v1/account", account.Delete)

	mux.HandleFunc("/api/v1/profiles", profiles.Search)
	mux.HandleFunc("/api/v1/profiles/{id}", profiles.Get)
	mux.HandleFunc("/api/v1/profile", profiles.Update)
	mux.HandleFunc("/api/v1/profile/avatar", profiles.UploadAvatar)

	mux.HandleFunc("/api/v1/friends", friendships.List)
	mux.HandleFunc("/api/v1/friends/status", friendships.Status)
	mux.HandleFunc("/api/v1/friends/requests", friendships.SendRequest)
	mux.HandleFunc("/api/v1/friends/requests/{id}/accept", friendships.Accept)
	mux.HandleFunc("/api/v1/friends/requests/{id}/reject", friendships.Reject)
	mux.HandleFunc("/api/v1/friends/block", friendships.Block)
	mux.HandleFunc("/api/v1/friends/{id}/unblock", friendships.Unblock)
	mux.HandleFunc("/api/v1/friends/{id}", friendships.Remove)

	mux.HandleFunc("/api/v1/stories", stories.Collection)
	mux.HandleFunc("/api/v1/stories/{id}", stories.ByID)
	mux.HandleFunc("/api/v1/diary", diary.Collection)
	mux.HandleFunc("/api/v1/diary/{id}", diary.ByID)
	mux.HandleFunc("/api/v1/poems", poems.Collection)
	mux.HandleFunc("/api/v1/poems/{id}", poems.Delete)
	mux.HandleFunc("/api/v1/novels", novels.Collection)
	mux.HandleFunc("/api/v1/novels/{id}", novels.ByID)
	mux.HandleFunc("/api/v1/novels/{id}/chapters", novels.Chapters)
	mux.HandleFunc("/api/v1/novels/{id}/chapters/{chapterId}", novels.ChapterByID)

	mux.HandleFunc("/api/v1/chat/rooms", chatH.Rooms)
	mux.HandleFunc("/api/v1/chat/rooms/{id}/messages", chatH.History)
	mux.HandleFunc("/api/v1/chat/rooms/{id}/ws", chatH.Connect)

	mux.HandleFunc("/api/v1/credits", creditsH.Balance)
	mux.HandleFunc("/api/v1/credits/milestones", creditsH.Eligible)
	mux.HandleFunc("/api/v1/credits/claim", creditsH.Claim)
	mux.HandleFunc("/api/v1/credits/transactions", creditsH.History)

	mux.HandleFunc("/api/v1/reports", reports.Create)
	mux.HandleFunc("/api/v1/admin/reports", reports.List)
	mux.HandleFunc("/api/v1/admin/reports/{id}", reports.Resolve)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Profiles      ProfileStore
	Sessions      SessionManager
	SessionPurger SessionPurger
	AuthLimiter   RateLimiter
	Registries    FriendshipRegistries
	Stories       StoryStore
	Diary         DiaryStore
	Poems         PoemStore
	Novels        NovelStore
	Chat          *chat.Hub
	Credits       CreditService
	Media         MediaUploader
	Reports       ReportStore
}
