package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/oprema/internal/events"
	"github.com/erazemk/oprema/internal/inventory"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/scanner"
)

// NewRouter creates the API router with all endpoints registered. hub may be
// nil, in which case no live feed is served.
func NewRouter(db *sql.DB, jwtSecret string, hub *events.Hub) http.Handler {
	mux := http.NewServeMux()

	var pub inventory.Publisher
	if hub != nil {
		pub = hub
	}
	inv := inventory.NewManager(db, pub)

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	holdersHandler := &HoldersHandler{DB: db}
	productsHandler := &ProductsHandler{DB: db}
	equipmentHandler := &EquipmentHandler{DB: db, Inventory: inv}
	serviceHandler := &ServiceHandler{Inventory: inv}
	checkHandler := &CheckInOutHandler{DB: db, Inventory: inv}
	scanHandler := &ScanHandler{Inventory: inv, Detector: scanner.NewNativeDetector()}
	labelsHandler := &LabelsHandler{DB: db, Inventory: inv}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	sess := RequireSesskey

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(sess(http.HandlerFunc(authHandler.ChangePassword))))
	mux.Handle("POST /api/auth/logout", authMW(sess(http.HandlerFunc(authHandler.Logout))))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(sess(requireAdmin(http.HandlerFunc(usersHandler.Create)))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(sess(requireAdmin(http.HandlerFunc(usersHandler.Update)))))
	mux.Handle("PUT /api/users/{id}/password", authMW(sess(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword)))))
	mux.Handle("DELETE /api/users/{id}", authMW(sess(requireAdmin(http.HandlerFunc(usersHandler.Delete)))))

	// Holders: read (all roles), write (manager+).
	mux.Handle("GET /api/holders", authMW(http.HandlerFunc(holdersHandler.List)))
	mux.Handle("POST /api/holders", authMW(sess(requireManager(http.HandlerFunc(holdersHandler.Create)))))
	mux.Handle("GET /api/holders/{id}", authMW(http.HandlerFunc(holdersHandler.Get)))
	mux.Handle("PUT /api/holders/{id}", authMW(sess(requireManager(http.HandlerFunc(holdersHandler.Update)))))
	mux.Handle("DELETE /api/holders/{id}", authMW(sess(requireManager(http.HandlerFunc(holdersHandler.Delete)))))
	mux.Handle("GET /api/holders/{id}/equipment", authMW(http.HandlerFunc(holdersHandler.Equipment)))

	// Products: read (all roles), write (manager+).
	mux.Handle("GET /api/products", authMW(http.HandlerFunc(productsHandler.List)))
	mux.Handle("POST /api/products", authMW(sess(requireManager(http.HandlerFunc(productsHandler.Create)))))
	mux.Handle("GET /api/products/{id}", authMW(http.HandlerFunc(productsHandler.Get)))
	mux.Handle("PUT /api/products/{id}", authMW(sess(requireManager(http.HandlerFunc(productsHandler.Update)))))
	mux.Handle("DELETE /api/products/{id}", authMW(sess(requireManager(http.HandlerFunc(productsHandler.Delete)))))

	// Equipment: lending actions (all roles), intake, status and removal (manager+).
	mux.Handle("GET /api/equipment", authMW(http.HandlerFunc(equipmentHandler.List)))
	mux.Handle("POST /api/equipment/intake", authMW(sess(requireManager(http.HandlerFunc(equipmentHandler.Intake)))))
	mux.Handle("POST /api/equipment/remove-by-upc", authMW(sess(requireManager(http.HandlerFunc(equipmentHandler.RemoveByUPC)))))
	mux.Handle("GET /api/equipment/{uuid}", authMW(http.HandlerFunc(equipmentHandler.Get)))
	mux.Handle("GET /api/equipment/{uuid}/history", authMW(http.HandlerFunc(equipmentHandler.History)))
	mux.Handle("GET /api/equipment/{uuid}/label.png", authMW(http.HandlerFunc(labelsHandler.Label)))
	mux.Handle("POST /api/equipment/{uuid}/assign", authMW(sess(http.HandlerFunc(equipmentHandler.Assign))))
	mux.Handle("POST /api/equipment/{uuid}/transfer", authMW(sess(http.HandlerFunc(equipmentHandler.Transfer))))
	mux.Handle("POST /api/equipment/{uuid}/unassign", authMW(sess(http.HandlerFunc(equipmentHandler.Unassign))))
	mux.Handle("POST /api/equipment/{uuid}/notes", authMW(sess(http.HandlerFunc(equipmentHandler.SaveNotes))))
	mux.Handle("POST /api/equipment/{uuid}/status", authMW(sess(requireManager(http.HandlerFunc(equipmentHandler.SetStatus)))))
	mux.Handle("POST /api/equipment/{uuid}/remove", authMW(sess(requireManager(http.HandlerFunc(equipmentHandler.Remove)))))

	// Scan station endpoints.
	mux.Handle("POST /api/service", authMW(sess(http.HandlerFunc(serviceHandler.Call))))
	mux.Handle("POST /api/checkinout", authMW(sess(http.HandlerFunc(checkHandler.Handle))))
	mux.Handle("POST /api/scan", authMW(LimitBody(ScanUploadLimit)(sess(http.HandlerFunc(scanHandler.Scan)))))

	// Label printing (manager+).
	mux.Handle("GET /api/printqueue", authMW(requireManager(http.HandlerFunc(labelsHandler.Queue))))
	mux.Handle("GET /api/printqueue/sheet.pdf", authMW(requireManager(http.HandlerFunc(labelsHandler.Sheet))))
	mux.Handle("DELETE /api/printqueue", authMW(sess(requireManager(http.HandlerFunc(labelsHandler.MarkPrinted)))))

	if hub != nil {
		eventsHandler := &EventsHandler{Hub: hub}
		mux.Handle("GET /api/events", authMW(http.HandlerFunc(eventsHandler.Subscribe)))
	}

	return mux
}
