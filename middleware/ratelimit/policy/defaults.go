package policy

import (
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

const (
	CategoryAuth      = "auth"
	CategoryDocuments = "documents"
	CategoryAdmin     = "admin"
	CategoryAI        = "ai"
	CategoryGeneral   = "general"
)

// Defaults é a tabela canônica de políticas da API.
//
// Todas emitem os headers RateLimit-* e usam o próprio nome como prefixo de chave.
func Defaults() []domain.Policy {
	ps := []domain.Policy{
		// auth
		{
			Name: "login", Category: CategoryAuth,
			Window: 15 * time.Minute, MaxRequests: 5,
			Message:  "Too many login attempts. Please try again after 15 minutes.",
			KeyMode:  domain.KeyCombined,
			Strategy: domain.FixedWindowStrategy,
		},
		{
			Name: "register", Category: CategoryAuth,
			Window: time.Hour, MaxRequests: 10,
			Message:  "Too many accounts created from this IP. Please try again after an hour.",
			KeyMode:  domain.KeyAddressOnly,
			Strategy: domain.FixedWindowStrategy,
		},
		{
			Name: "passwordChange", Category: CategoryAuth,
			Window: time.Hour, MaxRequests: 5,
			Message:  "Too many password change attempts. Please try again after an hour.",
			KeyMode:  domain.KeyIdentityOnly,
			Strategy: domain.SlidingWindowStrategy,
		},
		{
			Name: "passwordReset", Category: CategoryAuth,
			Window: time.Hour, MaxRequests: 10,
			Message:  "Too many password reset requests. Please try again after an hour.",
			KeyMode:  domain.KeyAddressOnly,
			Strategy: domain.SlidingWindowStrategy,
		},

		// documents
		{
			Name: "upload", Category: CategoryDocuments,
			Window: time.Hour, MaxRequests: 50,
			Message:  "Upload limit reached. Please try again after an hour.",
			KeyMode:  domain.KeyCombined,
			Strategy: domain.SlidingWindowStrategy,
		},
		{
			Name: "documentList", Category: CategoryDocuments,
			Window: time.Minute, MaxRequests: 60,
			Message:  "Too many document list requests. Please slow down.",
			KeyMode:  domain.KeyCombined,
			Strategy: domain.FixedWindowStrategy,
		},
		{
			Name: "download", Category: CategoryDocuments,
			Window: 15 * time.Minute, MaxRequests: 100,
			Message:  "Too many downloads. Please try again after 15 minutes.",
			KeyMode:  domain.KeyCombined,
			Strategy: domain.FixedWindowStrategy,
		},

		// admin
		{
			Name: "adminGeneral", Category: CategoryAdmin,
			Window: time.Minute, MaxRequests: 100,
			Message:  "Too many admin requests. Please slow down.",
			KeyMode:  domain.KeyIdentityOnly,
			Strategy: domain.FixedWindowStrategy,
		},
		{
			Name: "bulkOperations", Category: CategoryAdmin,
			Window: time.Hour, MaxRequests: 20,
			Message:  "Too many bulk operations. Please try again after an hour.",
			KeyMode:  domain.KeyIdentityOnly,
			Strategy: domain.SlidingWindowStrategy,
		},

		// ai
		{
			Name: "aiAnalysis", Category: CategoryAI,
			Window: time.Hour, MaxRequests: 20,
			Message:  "AI analysis limit reached. Please try again after an hour.",
			KeyMode:  domain.KeyIdentityOnly,
			Strategy: domain.SlidingWindowStrategy,
		},
		{
			Name: "categoryCreation", Category: CategoryAI,
			Window: 24 * time.Hour, MaxRequests: 10,
			Message:  "Category creation limit reached. Please try again tomorrow.",
			KeyMode:  domain.KeyIdentityOnly,
			Strategy: domain.SlidingWindowStrategy,
		},

		// fallback
		{
			Name: "general", Category: CategoryGeneral,
			Window: time.Minute, MaxRequests: 100,
			Message:  "Too many requests from this IP. Please try again later.",
			KeyMode:  domain.KeyAddressOnly,
			Strategy: domain.FixedWindowStrategy,
		},
	}

	for i := range ps {
		ps[i].StandardHeaders = true
		ps[i].KeyPrefix = ps[i].Name
	}
	return ps
}
