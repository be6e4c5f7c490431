package api

import "net/http"

// ListSkills возвращает каталог skills.
// GET /api/v1/skills
func (h *Handler) ListSkills(w http.ResponseWriter, r *http.Request) {
	items := h.catalog.List()

	result := make([]SkillResponse, len(items))
	for i, s := range items {
		result[i] = SkillFromDomain(s)
	}

	List(w, result, len(result))
}
