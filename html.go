/*
Copyright © 2026 Horriblebox <dev@horriblebox.net>
*/

package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/horriblebox/horriblebox/game"
	"github.com/horriblebox/horriblebox/rooms"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

func serveHomePage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		io.WriteString(w, newPage("Horriblebox", "Horriblebox room server"))

		logf(cfg, "SERVE: Home page to %s", realIP(r))
	}
}

// serveSharePage renders a minimal landing page for a room link, so a
// scanned QR code resolves to something human-readable even without the
// client application.
func serveSharePage(cfg *Config, store *rooms.Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := game.NormalizeCode(p.ByName("code"))

		room, err := store.Get(code)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, newPage("Not Found", "Room not found."))

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		body := fmt.Sprintf("Join room %s (%d player(s) waiting)", room.Code, len(room.Players))
		io.WriteString(w, newPage("Join "+room.Code, body))

		logf(cfg, "SERVE: Share page for room %s to %s", room.Code, realIP(r))
	}
}

// serveShareQR generates a PNG QR code pointing at the share page for a room.
func serveShareQR(cfg *Config, store *rooms.Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := game.NormalizeCode(p.ByName("code"))

		if _, err := store.Get(code); err != nil {
			http.Error(w, "room not found", http.StatusNotFound)

			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Write(png)

		logf(cfg, "SERVE: QR code for room %s to %s", code, realIP(r))
	}
}
