package transport

import "net/http"

type Handler interface {
	generate(w http.ResponseWriter, r *http.Request)
	generateSoundful(w http.ResponseWriter, r *http.Request)
	status(w http.ResponseWriter, r *http.Request)
	upload(w http.ResponseWriter, r *http.Request)
	videos(w http.ResponseWriter, r *http.Request)
	health(w http.ResponseWriter, r *http.Request)
}

type router struct {
	h Handler
}

func NewRouter(h Handler) *router {
	return &router{h: h}
}

func (r *router) MountRoutes(mux *http.ServeMux) *http.ServeMux {
	mux.HandleFunc("/generate", r.h.generate)
	mux.HandleFunc("/generate/soundful", r.h.generateSoundful)
	mux.HandleFunc("/task/", r.h.status)
	mux.HandleFunc("/upload/video", r.h.upload)
	mux.HandleFunc("/videos", r.h.videos)
	mux.HandleFunc("/health", r.h.health)

	return mux
}
