package policy

import "net/http"

// DefaultRoutes é o mapeamento de endpoints da API para políticas.
//
// "general" entra em todas as rotas da API antes da política específica.
// A rota /api/* pega o que sobrar.
func DefaultRoutes() []Route {
	post := []string{http.MethodPost}
	get := []string{http.MethodGet}
	return []Route{
		{Pattern: "/api/auth/login", Methods: post, Policies: []string{"general", "login"}},
		{Pattern: "/api/auth/register", Methods: post, Policies: []string{"general", "register"}},
		{Pattern: "/api/auth/change-password", Methods: post, Policies: []string{"general", "passwordChange"}},
		{Pattern: "/api/auth/forgot-password", Methods: post, Policies: []string{"general", "passwordReset"}},
		{Pattern: "/api/auth/reset-password", Methods: post, Policies: []string{"general", "passwordReset"}},

		{Pattern: "/api/documents/upload", Methods: post, Policies: []string{"general", "upload"}},
		{Pattern: "/api/documents", Methods: get, Policies: []string{"general", "documentList"}},
		{Pattern: "/api/documents/{id}/download", Methods: get, Policies: []string{"general", "download"}},

		{Pattern: "/api/admin/bulk/*", Policies: []string{"general", "adminGeneral", "bulkOperations"}},
		{Pattern: "/api/admin/*", Policies: []string{"general", "adminGeneral"}},

		{Pattern: "/api/ai/analyze", Methods: post, Policies: []string{"general", "aiAnalysis"}},
		{Pattern: "/api/ai/documents/{id}/analyze", Methods: post, Policies: []string{"general", "aiAnalysis"}},
		{Pattern: "/api/categories", Methods: post, Policies: []string{"general", "categoryCreation"}},

		{Pattern: "/api/*", Policies: []string{"general"}},
	}
}

// RoutesOrDefault retorna as rotas do arquivo ou DefaultRoutes se não houver nenhuma.
func (f *File) RoutesOrDefault() []Route {
	if f == nil || len(f.Routes) == 0 {
		return DefaultRoutes()
	}
	return f.Routes
}
