package respond

import (
	"encoding/json"
	"net/http"
)

func JSON(w http.ResponseWriter, r *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func Error(w http.ResponseWriter, r *http.Request, code int, message string) {
	JSON(w, r, code, map[string]string{"error": message})
}

// View отдает состояние списка. Список перечитывается на каждый запрос,
// поэтому кэшировать ответ нельзя.
func View(w http.ResponseWriter, r *http.Request, code int, view any) {
	w.Header().Set("Cache-Control", "no-store")
	JSON(w, r, code, view)
}
