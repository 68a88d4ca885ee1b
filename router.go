package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/marcus-crane/explorer/artwork"
	"github.com/marcus-crane/explorer/events"
	"github.com/marcus-crane/explorer/gallery"
	"github.com/marcus-crane/explorer/render"
	"github.com/marcus-crane/explorer/scroll"
)

const (
	sessionCookie = "explorer_session"
	sidebarCookie = "explorer_sidebar"

	eventTiles   = "tiles"
	eventViewers = "viewers"
	eventFailed  = "failed"

	// loadTimeout bounds a load started by the scroll trigger, which outlives
	// the request that fired it.
	loadTimeout = 30 * time.Second
)

type tilesPayload struct {
	HTML        string `json:"html"`
	Offset      int    `json:"offset"`
	HasNextPage bool   `json:"has_next_page"`
}

type failedPayload struct {
	Message string `json:"message"`
}

func renderJSONMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// publisher streams gallery changes to the page that mounted the view.
type publisher struct {
	hub      *events.Hub
	renderer *render.Renderer
	palette  *artwork.Palette
	hasNext  func(sessionID string) bool
}

func (p *publisher) GalleryChanged(c gallery.Change) {
	switch c.Kind {
	case gallery.ChangePage:
		if p.palette != nil {
			urls := make([]string, 0, len(c.Games))
			for _, g := range c.Games {
				urls = append(urls, gallery.ProvideSize(g.BoxArtURL))
			}
			go p.palette.Warm(context.Background(), urls)
		}
		// Mount's page is already part of the rendered document
		if c.Initial {
			return
		}
		var buf bytes.Buffer
		if err := p.renderer.Tiles(&buf, c.Games, c.Offset); err != nil {
			slog.Error("Failed to render tiles",
				slog.String("error", err.Error()),
				slog.String("session", c.SessionID),
			)
			return
		}
		p.publish(c.SessionID, eventTiles, tilesPayload{
			HTML:        buf.String(),
			Offset:      c.Offset,
			HasNextPage: p.hasNext(c.SessionID),
		})
	case gallery.ChangeViewers:
		p.publish(c.SessionID, eventViewers, render.ViewerUpdates(c.Games))
	}
}

func (p *publisher) failed(sessionID string, err error) {
	p.publish(sessionID, eventFailed, failedPayload{Message: err.Error()})
}

func (p *publisher) publish(sessionID, event string, payload any) {
	if err := p.hub.Publish(sessionID, event, payload); err != nil {
		slog.Error("Failed to publish event",
			slog.String("error", err.Error()),
			slog.String("session", sessionID),
			slog.String("event", event),
		)
	}
}

// sessionID returns the id from the session cookie, minting a new one when
// the browser has none.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func existingSessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// sidebarExpanded honours ?sidebar= and remembers the choice in a cookie.
func sidebarExpanded(w http.ResponseWriter, r *http.Request) bool {
	if v := r.URL.Query().Get("sidebar"); v != "" {
		expanded := v == "expanded"
		http.SetCookie(w, &http.Cookie{
			Name:     sidebarCookie,
			Value:    fmt.Sprintf("%t", expanded),
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		})
		return expanded
	}
	if c, err := r.Cookie(sidebarCookie); err == nil {
		return c.Value == "true"
	}
	return false
}

func etag(body []byte) string {
	return fmt.Sprintf(`"%x"`, xxhash.Sum64(body))
}

// ownedView finds the gallery named by the view query parameter, provided it
// was mounted by the caller's session. It writes the error response itself.
func ownedView(w http.ResponseWriter, r *http.Request, registry *gallery.Registry, param string) (*gallery.Controller, string, bool) {
	owner, ok := existingSessionID(r)
	if !ok {
		renderJSONMessage(w, http.StatusUnauthorized, "No session was provided")
		return nil, "", false
	}
	viewID := r.URL.Query().Get(param)
	if viewID == "" {
		renderJSONMessage(w, http.StatusBadRequest, "No view was provided")
		return nil, "", false
	}
	controller, ok := registry.Lookup(viewID, owner)
	if !ok {
		renderJSONMessage(w, http.StatusNotFound, "No gallery is mounted for this view")
		return nil, "", false
	}
	return controller, viewID, true
}

func RegisterRoutes(mux *http.ServeMux, origins []string, registry *gallery.Registry, hub *events.Hub, renderer *render.Renderer, pub *publisher) http.Handler {

	mountGallery := func(w http.ResponseWriter, r *http.Request) {
		owner := sessionID(w, r)
		expanded := sidebarExpanded(w, r)

		// Every page load is its own view, like a tab's sessionStorage
		viewID := uuid.NewString()
		hub.Open(viewID)
		controller := registry.Mount(viewID, owner)
		state, err := controller.Mount(r.Context())
		if err != nil {
			// Whatever loaded is still worth showing
			slog.Error("Failed to mount gallery",
				slog.String("error", err.Error()),
				slog.String("view", viewID),
			)
		}

		var buf bytes.Buffer
		if err := renderer.Page(&buf, viewID, expanded, state); err != nil {
			slog.Error("Failed to render page", slog.String("error", err.Error()))
			http.Error(w, "failed to render page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(buf.Bytes())
	}

	mux.HandleFunc("GET /{$}", mountGallery)
	mux.HandleFunc("GET /directory", mountGallery)

	mux.HandleFunc("POST /api/games/more", func(w http.ResponseWriter, r *http.Request) {
		controller, viewID, ok := ownedView(w, r, registry, "view")
		if !ok {
			return
		}
		trigger := scroll.Trigger{
			Loading:     controller.Loading,
			HasNextPage: controller.HasNextPage,
			OnLoadMore: func() {
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
					defer cancel()
					_, err := controller.LoadMore(ctx)
					switch {
					case err == nil, errors.Is(err, gallery.ErrLoadInFlight), errors.Is(err, gallery.ErrReleased):
					default:
						pub.failed(viewID, err)
					}
				}()
			},
		}
		if trigger.Visible() {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/games", func(w http.ResponseWriter, r *http.Request) {
		controller, _, ok := ownedView(w, r, registry, "view")
		if !ok {
			return
		}
		body, err := json.Marshal(controller.State())
		if err != nil {
			renderJSONMessage(w, http.StatusInternalServerError, "Failed to encode gallery")
			return
		}
		tag := etag(body)
		w.Header().Set("ETag", tag)
		if r.Header.Get("If-None-Match") == tag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})

	mux.HandleFunc("DELETE /api/session", func(w http.ResponseWriter, r *http.Request) {
		owner, ok := existingSessionID(r)
		viewID := r.URL.Query().Get("view")
		if !ok || viewID == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		// Releasing twice, or someone else's view, is a no-op
		if _, ok := registry.Lookup(viewID, owner); !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := registry.Release(r.Context(), viewID); err != nil {
			slog.Error("Failed to release view",
				slog.String("error", err.Error()),
				slog.String("view", viewID),
			)
			renderJSONMessage(w, http.StatusInternalServerError, "Failed to release view")
			return
		}
		hub.Close(viewID)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) {
		owner, ok := existingSessionID(r)
		if !ok {
			renderJSONMessage(w, http.StatusForbidden, "No session was provided")
			return
		}
		if _, ok := registry.Lookup(r.URL.Query().Get("stream"), owner); !ok {
			renderJSONMessage(w, http.StatusForbidden, "That stream does not belong to this session")
			return
		}
		hub.ServeHTTP(w, r)
	})

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(render.Static())))

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "If-None-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: true,
	})

	return c.Handler(mux)
}
