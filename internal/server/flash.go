package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/faciam-dev/formportal/internal/render"
	"github.com/faciam-dev/formportal/internal/session"
)

const flashCookie = "portal_flash"

// setFlash keeps a message for the next page the browser loads.
func setFlash(w http.ResponseWriter, f render.Flash) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(f.Kind + "|" + f.Text),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash returns and clears the pending message, if any.
func takeFlash(w http.ResponseWriter, r *http.Request) []render.Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	v, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	kind, text, ok := strings.Cut(v, "|")
	if !ok || text == "" {
		return nil
	}
	return []render.Flash{{Kind: kind, Text: text}}
}

// noticeFlash turns a form notice into a toast.
func noticeFlash(notice string) []render.Flash {
	switch notice {
	case "":
		return nil
	case session.FailureNotice:
		return []render.Flash{{Kind: render.FlashError, Text: notice}}
	}
	return []render.Flash{{Kind: render.FlashSuccess, Text: notice}}
}
