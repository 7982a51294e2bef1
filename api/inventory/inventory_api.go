package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"inventory.GO/api"
	"inventory.GO/config"
	"inventory.GO/core/cache"
	inventoryEntity "inventory.GO/model/entity/inventory"
	inventoryRepo "inventory.GO/model/repository/inventory"
)

// Request headers. Tokens are enforced only when the matching env var is
// set; the user header supplies the audit actor when the payload has none.
const (
	HeaderWriteToken = "X-Inventory-Token"
	HeaderAdminToken = "X-Inventory-Admin-Token"
	HeaderUser       = "X-Inventory-User"
)

func init() {
	api.RegisterModule(func(g *echo.Group, db *gorm.DB) {
		NewModule(db).Register(g)
	})
}

// Module bundles the inventory REST handlers with their dependencies.
// Tests construct it directly with a custom security loader and audit path.
type Module struct {
	ledger    *inventoryRepo.LedgerRepository
	queue     *inventoryRepo.QueueRepository
	reads     *inventoryRepo.ReadsRepository
	locations *inventoryRepo.LocationRepository
	approvals *inventoryRepo.ApprovalRepository
	audit     *AuditLogger
	security  func() *config.SecurityConfig
	cache     *cache.Cache
}

// Overview responses are cached briefly and invalidated by tag whenever a
// write changes balances.
const (
	overviewCacheTag = "inventory:overview"
	overviewCacheTTL = 15 // seconds
)

func NewModule(db *gorm.DB) *Module {
	sec := config.LoadSecurityConfig()
	return &Module{
		ledger:    inventoryRepo.NewLedgerRepository(db),
		queue:     inventoryRepo.NewQueueRepository(db),
		reads:     inventoryRepo.NewReadsRepository(db),
		locations: inventoryRepo.NewLocationRepository(db),
		approvals: inventoryRepo.NewApprovalRepository(db),
		audit:     NewAuditLogger(sec.AuditPath),
		security:  config.LoadSecurityConfig,
		cache:     cache.GetInstance(),
	}
}

// WithSecurity overrides the security loader and audit destination.
func (m *Module) WithSecurity(loader func() *config.SecurityConfig, auditPath string) *Module {
	m.security = loader
	m.audit = NewAuditLogger(auditPath)
	return m
}

func (m *Module) Register(g *echo.Group) {
	g.GET("/inventory/health", m.health)
	g.GET("/inventory/overview", m.overview)
	g.GET("/inventory/item/:sku", m.itemDetail)
	g.GET("/inventory/events", m.recentEvents)
	g.GET("/inventory/events/:id", m.getEvent)
	g.GET("/inventory/queue", m.queueSummary)
	g.GET("/inventory/locations", m.listLocations)
	g.GET("/inventory/security-config", m.securityConfig)

	g.POST("/inventory/transfer", m.createTransfer)
	g.POST("/inventory/adjustment", m.createAdjustment)
	g.POST("/inventory/locations", m.upsertLocation)
	g.POST("/inventory/events/:id/void", m.voidEvent)
	g.POST("/inventory/events/:id/retry", m.retryEvent)

	g.GET("/inventory/audit", m.auditLog)
	g.GET("/inventory/approvals", m.listApprovals)
	g.POST("/inventory/approvals/:id/approve", m.approveRequest)
	g.POST("/inventory/approvals/:id/reject", m.rejectRequest)
	g.POST("/inventory/reason-accounts", m.upsertReasonAccount)
}

// --- auth helpers ---

func (m *Module) actor(c echo.Context, createdBy string) string {
	if createdBy != "" {
		return createdBy
	}
	if user := strings.TrimSpace(c.Request().Header.Get(HeaderUser)); user != "" {
		return user
	}
	return "unknown"
}

// requireWrite checks the write token. A denial is audited and answered
// before the handler body runs.
func (m *Module) requireWrite(c echo.Context, action string) bool {
	sec := m.security()
	if sec.WriteToken == "" {
		return true
	}
	if c.Request().Header.Get(HeaderWriteToken) == sec.WriteToken {
		return true
	}
	m.audit.Record(action, "denied", m.actor(c, ""), map[string]interface{}{"reason": "invalid write token"})
	_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or missing write token"})
	return false
}

func (m *Module) requireAdmin(c echo.Context, action string) bool {
	sec := m.security()
	if sec.AdminToken == "" {
		return true
	}
	if c.Request().Header.Get(HeaderAdminToken) == sec.AdminToken {
		return true
	}
	m.audit.Record(action, "denied", m.actor(c, ""), map[string]interface{}{"reason": "invalid admin token"})
	_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or missing admin token"})
	return false
}

// writeError maps repository errors onto HTTP status codes.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, inventoryRepo.ErrEventNotFound),
		errors.Is(err, inventoryRepo.ErrApprovalNotFound),
		errors.Is(err, inventoryRepo.ErrUnknownSKU) && c.Request().Method == http.MethodGet:
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, inventoryRepo.ErrEventFrozen),
		errors.Is(err, inventoryRepo.ErrNotRetryable),
		errors.Is(err, inventoryRepo.ErrApprovalNotPending):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, inventoryRepo.ErrUnknownSKU),
		errors.Is(err, inventoryRepo.ErrUnknownLocation),
		errors.Is(err, inventoryRepo.ErrInactiveLocation),
		errors.Is(err, inventoryRepo.ErrInvalidQuantity),
		errors.Is(err, inventoryRepo.ErrSameLocation),
		errors.Is(err, inventoryRepo.ErrInsufficientStock),
		errors.Is(err, inventoryRepo.ErrInvalidMode),
		errors.Is(err, inventoryRepo.ErrNoLines):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
}

func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// --- write payloads ---

type transferPayload struct {
	EffectiveDate string                       `json:"effectiveDate"`
	Lines         []inventoryRepo.TransferLine `json:"lines"`
	Memo          string                       `json:"memo"`
	CreatedBy     string                       `json:"createdBy"`
	Reason        string                       `json:"reason"`
}

type adjustmentPayload struct {
	EffectiveDate string                         `json:"effectiveDate"`
	LocationCode  string                         `json:"locationCode"`
	Mode          string                         `json:"mode"`
	Lines         []inventoryRepo.AdjustmentLine `json:"lines"`
	Memo          string                         `json:"memo"`
	CreatedBy     string                         `json:"createdBy"`
	ReasonCode    string                         `json:"reasonCode"`
	Reason        string                         `json:"reason"`
}

func transferNeedsApproval(sec *config.SecurityConfig, lines []inventoryRepo.TransferLine) bool {
	if !sec.RequireApproval {
		return false
	}
	for _, line := range lines {
		if math.Abs(line.Qty) >= sec.ApprovalQtyThreshold {
			return true
		}
	}
	return false
}

func adjustmentNeedsApproval(sec *config.SecurityConfig, mode string, lines []inventoryRepo.AdjustmentLine) bool {
	if !sec.RequireApproval {
		return false
	}
	// Set mode can hide an arbitrarily large swing behind a small target,
	// so it is always gated.
	if mode == inventoryEntity.AdjustmentModeSet {
		return true
	}
	for _, line := range lines {
		if line.Qty != nil && math.Abs(*line.Qty) >= sec.ApprovalQtyThreshold {
			return true
		}
	}
	return false
}

// parkForApproval stores the payload and answers 202.
func (m *Module) parkForApproval(c echo.Context, action, actor, reason string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return writeError(c, err)
	}
	req, err := m.approvals.Create(action, raw, reason, actor)
	if err != nil {
		return writeError(c, err)
	}
	m.audit.Record(action, "pending_approval", actor, map[string]interface{}{"requestId": req.RequestID})
	return c.JSON(http.StatusAccepted, echo.Map{
		"status":           "pending_approval",
		"requestId":        req.RequestID,
		"approvalRequired": true,
	})
}

// --- handlers ---

func (m *Module) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (m *Module) createTransfer(c echo.Context) error {
	if !m.requireWrite(c, "create_transfer") {
		return nil
	}
	var body transferPayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	actor := m.actor(c, body.CreatedBy)
	body.CreatedBy = actor

	if transferNeedsApproval(m.security(), body.Lines) {
		return m.parkForApproval(c, "create_transfer", actor, body.Reason, body)
	}

	event, err := m.ledger.CreateTransfer(body.EffectiveDate, body.Lines, body.Memo, actor)
	if err != nil {
		m.audit.Record("create_transfer", "error", actor, map[string]interface{}{"error": err.Error()})
		return writeError(c, err)
	}
	m.audit.Record("create_transfer", "success", actor, map[string]interface{}{"eventId": event.EventID, "lines": len(body.Lines)})
	m.cache.DeleteByTag(overviewCacheTag)
	return c.JSON(http.StatusCreated, event)
}

func (m *Module) createAdjustment(c echo.Context) error {
	if !m.requireWrite(c, "create_adjustment") {
		return nil
	}
	var body adjustmentPayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	if body.Mode == "" {
		body.Mode = inventoryEntity.AdjustmentModeDelta
	}
	actor := m.actor(c, body.CreatedBy)
	body.CreatedBy = actor

	if adjustmentNeedsApproval(m.security(), body.Mode, body.Lines) {
		return m.parkForApproval(c, "create_adjustment", actor, body.Reason, body)
	}

	event, err := m.ledger.CreateAdjustment(body.EffectiveDate, body.LocationCode, body.Mode, body.Lines, body.Memo, actor, body.ReasonCode)
	if err != nil {
		m.audit.Record("create_adjustment", "error", actor, map[string]interface{}{"error": err.Error()})
		return writeError(c, err)
	}
	m.audit.Record("create_adjustment", "success", actor, map[string]interface{}{"eventId": event.EventID, "mode": body.Mode})
	m.cache.DeleteByTag(overviewCacheTag)
	return c.JSON(http.StatusCreated, event)
}

func (m *Module) voidEvent(c echo.Context) error {
	if !m.requireAdmin(c, "void_event") {
		return nil
	}
	eventID := c.Param("id")
	event, err := m.ledger.VoidEvent(eventID)
	if err != nil {
		m.audit.Record("void_event", "error", m.actor(c, ""), map[string]interface{}{"eventId": eventID, "error": err.Error()})
		return writeError(c, err)
	}
	m.audit.Record("void_event", "success", m.actor(c, ""), map[string]interface{}{"eventId": eventID})
	m.cache.DeleteByTag(overviewCacheTag)
	return c.JSON(http.StatusOK, event)
}

func (m *Module) retryEvent(c echo.Context) error {
	if !m.requireAdmin(c, "retry_event") {
		return nil
	}
	eventID := c.Param("id")
	event, err := m.queue.ManualRetry(eventID)
	if err != nil {
		m.audit.Record("retry_event", "error", m.actor(c, ""), map[string]interface{}{"eventId": eventID, "error": err.Error()})
		return writeError(c, err)
	}
	m.audit.Record("retry_event", "success", m.actor(c, ""), map[string]interface{}{"eventId": eventID})
	return c.JSON(http.StatusOK, event)
}

func (m *Module) upsertLocation(c echo.Context) error {
	if !m.requireWrite(c, "upsert_location") {
		return nil
	}
	var loc inventoryEntity.Location
	if err := c.Bind(&loc); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	if strings.TrimSpace(loc.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}
	if err := m.locations.Upsert(&loc); err != nil {
		return writeError(c, err)
	}
	m.audit.Record("upsert_location", "success", m.actor(c, ""), map[string]interface{}{"code": loc.Code})
	return c.JSON(http.StatusOK, loc)
}

func (m *Module) upsertReasonAccount(c echo.Context) error {
	if !m.requireAdmin(c, "upsert_reason_account") {
		return nil
	}
	var body struct {
		ReasonCode      string `json:"reasonCode"`
		AccountFullName string `json:"accountFullName"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	if body.ReasonCode == "" || body.AccountFullName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reasonCode and accountFullName are required"})
	}
	if err := m.locations.UpsertReasonAccount(body.ReasonCode, body.AccountFullName); err != nil {
		return writeError(c, err)
	}
	m.audit.Record("upsert_reason_account", "success", m.actor(c, ""), map[string]interface{}{"reasonCode": body.ReasonCode})
	return c.JSON(http.StatusOK, echo.Map{"reasonCode": body.ReasonCode, "accountFullName": body.AccountFullName})
}

func (m *Module) overview(c echo.Context) error {
	search := c.QueryParam("search")
	location := c.QueryParam("location")
	includeInactive := c.QueryParam("includeInactive") == "true"
	limit := queryInt(c, "limit", 0)

	key := []interface{}{"overview", search, location, includeInactive, limit}
	if cached, ok := m.cache.GetN(key...); ok {
		return c.JSON(http.StatusOK, cached)
	}

	rows, err := m.reads.Overview(search, location, includeInactive, limit)
	if err != nil {
		return writeError(c, err)
	}
	payload := echo.Map{"items": rows, "count": len(rows)}
	m.cache.SetN(key, payload, overviewCacheTTL, []string{overviewCacheTag})
	return c.JSON(http.StatusOK, payload)
}

func (m *Module) itemDetail(c echo.Context) error {
	detail, err := m.reads.ItemDetail(c.Param("sku"), queryInt(c, "limit", 50))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (m *Module) recentEvents(c echo.Context) error {
	events, err := m.reads.RecentEvents(queryInt(c, "limit", 50))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events, "count": len(events)})
}

func (m *Module) getEvent(c echo.Context) error {
	event, err := m.reads.GetEvent(c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, event)
}

func (m *Module) queueSummary(c echo.Context) error {
	summary, err := m.reads.QueueSummary(queryInt(c, "limit", 10))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (m *Module) listLocations(c echo.Context) error {
	locations, err := m.locations.List(c.QueryParam("includeInactive") == "true")
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"locations": locations})
}

func (m *Module) securityConfig(c echo.Context) error {
	sec := m.security()
	return c.JSON(http.StatusOK, echo.Map{
		"writeTokenRequired":   sec.WriteToken != "",
		"adminTokenRequired":   sec.AdminToken != "",
		"approvalEnabled":      sec.RequireApproval,
		"approvalQtyThreshold": sec.ApprovalQtyThreshold,
	})
}

func (m *Module) auditLog(c echo.Context) error {
	if !m.requireAdmin(c, "read_audit") {
		return nil
	}
	entries, err := m.audit.Recent(queryInt(c, "limit", 100))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries, "count": len(entries)})
}

// --- approvals ---

func (m *Module) listApprovals(c echo.Context) error {
	if !m.requireAdmin(c, "list_approvals") {
		return nil
	}
	status := c.QueryParam("status")
	if status == "" {
		status = inventoryEntity.ApprovalStatusPending
	}
	rows, err := m.approvals.List(status, queryInt(c, "limit", 50))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"approvals": rows, "count": len(rows)})
}

// executeApproved replays the parked payload through the ledger.
func (m *Module) executeApproved(req *inventoryEntity.ApprovalRequest) (string, error) {
	switch req.Action {
	case inventoryEntity.ApprovalActionTransfer:
		var body transferPayload
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return "", fmt.Errorf("decode parked payload: %w", err)
		}
		event, err := m.ledger.CreateTransfer(body.EffectiveDate, body.Lines, body.Memo, body.CreatedBy)
		if err != nil {
			return "", err
		}
		return event.EventID, nil
	case inventoryEntity.ApprovalActionAdjustment:
		var body adjustmentPayload
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return "", fmt.Errorf("decode parked payload: %w", err)
		}
		event, err := m.ledger.CreateAdjustment(body.EffectiveDate, body.LocationCode, body.Mode, body.Lines, body.Memo, body.CreatedBy, body.ReasonCode)
		if err != nil {
			return "", err
		}
		return event.EventID, nil
	default:
		return "", fmt.Errorf("unknown approval action %q", req.Action)
	}
}

func (m *Module) approveRequest(c echo.Context) error {
	if !m.requireAdmin(c, "approve_request") {
		return nil
	}
	var body struct {
		Note string `json:"note"`
	}
	_ = c.Bind(&body)
	decidedBy := m.actor(c, "")
	requestID := c.Param("id")

	req, err := m.approvals.Claim(requestID, decidedBy)
	if err != nil {
		return writeError(c, err)
	}

	eventID, execErr := m.executeApproved(req)
	execMsg := ""
	if execErr != nil {
		execMsg = execErr.Error()
	}
	final, err := m.approvals.Finish(requestID, decidedBy, body.Note, eventID, execMsg)
	if err != nil {
		return writeError(c, err)
	}
	outcome := "success"
	if execErr != nil {
		outcome = "error"
	} else {
		m.cache.DeleteByTag(overviewCacheTag)
	}
	m.audit.Record("approve_request", outcome, decidedBy, map[string]interface{}{
		"requestId": requestID,
		"action":    req.Action,
		"eventId":   eventID,
		"error":     execMsg,
	})
	return c.JSON(http.StatusOK, final)
}

func (m *Module) rejectRequest(c echo.Context) error {
	if !m.requireAdmin(c, "reject_request") {
		return nil
	}
	var body struct {
		Note string `json:"note"`
	}
	_ = c.Bind(&body)
	decidedBy := m.actor(c, "")
	requestID := c.Param("id")

	req, err := m.approvals.Reject(requestID, decidedBy, body.Note)
	if err != nil {
		return writeError(c, err)
	}
	m.audit.Record("reject_request", "success", decidedBy, map[string]interface{}{"requestId": requestID})
	return c.JSON(http.StatusOK, req)
}
