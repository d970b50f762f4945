package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter builds the HTTP handler for the whole API.
func NewRouter(auth *Authenticator, chat *ChatController, tasks *TaskController) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestLogger)
	RegisterRoutes(router, auth, chat, tasks)
	return router
}

// RegisterRoutes sets up all routes for the application.
func RegisterRoutes(router *mux.Router, auth *Authenticator, chat *ChatController, tasks *TaskController) {
	router.HandleFunc("/health", Health).Methods(http.MethodGet)

	user := router.PathPrefix("/api/{user_id}").Subrouter()
	user.Use(auth.RequireUser)

	user.HandleFunc("/chat", chat.Chat).Methods(http.MethodPost)
	user.HandleFunc("/conversations", chat.ListConversations).Methods(http.MethodGet)
	user.HandleFunc("/conversations/{conversation_id:[0-9]+}/messages", chat.GetMessages).Methods(http.MethodGet)

	user.HandleFunc("/tasks", tasks.GetTasks).Methods(http.MethodGet)
	user.HandleFunc("/tasks", tasks.CreateTask).Methods(http.MethodPost)
	user.HandleFunc("/tasks/{task_id:[0-9]+}", tasks.GetTask).Methods(http.MethodGet)
	user.HandleFunc("/tasks/{task_id:[0-9]+}", tasks.UpdateTask).Methods(http.MethodPut)
	user.HandleFunc("/tasks/{task_id:[0-9]+}", tasks.DeleteTask).Methods(http.MethodDelete)
	user.HandleFunc("/tasks/{task_id:[0-9]+}/complete", tasks.ToggleTask).Methods(http.MethodPatch)
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
