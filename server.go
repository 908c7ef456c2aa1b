package main

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type signupRequest struct {
	Username  string `json:"username"`
	Password  string `json:"pass"`
	Password2 string `json:"pass2"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"pass"`
}

type authResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	ID       int64  `json:"id"`
}

type passwordRequest struct {
	OldPassword  string `json:"oldPass"`
	NewPassword  string `json:"newPass"`
	NewPassword2 string `json:"newPass2"`
}

type purchaseRequest struct {
	Item string `json:"item"`
}

type purchaseResponse struct {
	Item  string `json:"item"`
	Added bool   `json:"added"`
}

type userInfo struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Items    []string `json:"items"`
	Online   bool     `json:"online"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorMsg{Msg: msg})
}

// writeAuthError maps account errors to a status. Anything that is not a
// known user error is logged and hidden.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadCredentials), errors.Is(err, ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrUsernameTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, ErrSamePassword), errors.As(err, new(fieldError)):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("auth: %v", err)
		writeError(w, http.StatusInternalServerError, "an error occurred")
	}
}

// bearerToken reads the token from the Authorization header or ?token=
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// authenticate validates the request's token. Writes 401 on failure.
func authenticate(hub *Hub, w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	id, username, err := hub.auth.ValidateToken(bearerToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "login required")
		return 0, "", false
	}
	return id, username, true
}

// decodeBody reads a JSON request body into v. Writes 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return false
	}
	return true
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub, cfg Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Static client, revalidated on every load so deploys show up at once
	static := http.FileServer(http.Dir(cfg.ClientDir))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		static.ServeHTTP(w, r)
	}))

	mux.HandleFunc("POST /api/signup", func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if !decodeBody(w, r, &req) {
			return
		}
		id, token, err := hub.auth.Register(req.Username, req.Password, req.Password2)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, authResponse{Token: token, Username: strings.TrimSpace(req.Username), ID: id})
	})

	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeBody(w, r, &req) {
			return
		}
		id, token, err := hub.auth.Login(req.Username, req.Password, extractIP(r))
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, authResponse{Token: token, Username: strings.TrimSpace(req.Username), ID: id})
	})

	mux.HandleFunc("POST /api/password", func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := authenticate(hub, w, r)
		if !ok {
			return
		}
		var req passwordRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := hub.auth.ChangePassword(id, req.OldPassword, req.NewPassword, req.NewPassword2); err != nil {
			writeAuthError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/user/info", func(w http.ResponseWriter, r *http.Request) {
		id, username, ok := authenticate(hub, w, r)
		if !ok {
			return
		}
		items, err := hub.db.PurchasedItems(id)
		if err != nil {
			log.Printf("user info %d: %v", id, err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		if items == nil {
			items = []string{}
		}
		writeJSON(w, http.StatusOK, userInfo{ID: id, Username: username, Items: items, Online: hub.IsOnline(id)})
	})

	mux.HandleFunc("GET /api/items", func(w http.ResponseWriter, r *http.Request) {
		var owned []string
		if tok := bearerToken(r); tok != "" {
			if id, _, err := hub.auth.ValidateToken(tok); err == nil {
				if owned, err = hub.db.PurchasedItems(id); err != nil {
					log.Printf("items %d: %v", id, err)
				}
			}
		}
		writeJSON(w, http.StatusOK, StoreItems(owned))
	})

	mux.HandleFunc("POST /api/purchase", func(w http.ResponseWriter, r *http.Request) {
		id, username, ok := authenticate(hub, w, r)
		if !ok {
			return
		}
		var req purchaseRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if _, ok := LookupModifier(req.Item); !ok {
			writeError(w, http.StatusNotFound, "unknown item")
			return
		}
		added, err := hub.db.AddPurchase(id, req.Item)
		if err != nil {
			log.Printf("purchase %s for %s: %v", req.Item, username, err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		if added {
			log.Printf("%s bought %s", username, req.Item)
			hub.ApplyPurchase(id, req.Item)
		}
		writeJSON(w, http.StatusOK, purchaseResponse{Item: req.Item, Added: added})
	})

	mux.HandleFunc("GET /api/qr", func(w http.ResponseWriter, r *http.Request) {
		png, err := qrcode.Encode(cfg.PublicURL, qrcode.Medium, qrSize)
		if err != nil {
			log.Printf("qr %s: %v", cfg.PublicURL, err)
			http.Error(w, "qr error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(hub, w, r)
	})

	return mux
}

// serveWS upgrades an authenticated request and joins its player to the rink
func serveWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	accountID, username, err := hub.auth.ValidateToken(bearerToken(r))
	if err != nil {
		http.Error(w, "login required", http.StatusUnauthorized)
		return
	}
	ip := extractIP(r)
	if !hub.Admit(ip) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	if !hub.ReserveAccount(accountID) {
		hub.Release(ip)
		http.Error(w, "already connected", http.StatusConflict)
		return
	}
	mods, err := hub.db.PurchasedItems(accountID)
	if err != nil {
		log.Printf("ws %s: purchased items: %v", username, err)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.ReleaseAccount(accountID)
		hub.Release(ip)
		log.Printf("ws %s: upgrade: %v", username, err)
		return
	}

	client := NewClient(hub, conn, ip, accountID, username)
	hub.attach(client)
	hub.register <- client

	go client.WritePump()

	// history is queued before the join so it precedes the welcome
	if hub.chat != nil {
		client.sendHistory(hub.chat.Recent())
	}
	if !hub.rink.Enqueue(JoinCmd{
		PlayerID:  client.playerID,
		Name:      username,
		AccountID: accountID,
		Modifiers: mods,
		Client:    client,
	}) {
		log.Printf("ws %s: rink stopped", username)
	}
	// the read side queues the leave, so it starts after the join
	go client.ReadPump()
}
