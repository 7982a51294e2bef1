package qbwc

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"inventory.GO/config"
	inventoryEntity "inventory.GO/model/entity/inventory"
	inventoryRepo "inventory.GO/model/repository/inventory"
)

// EventQueue is the slice of the sync queue the bridge drives.
type EventQueue interface {
	NextEligible(nowMs int64, limit int) ([]inventoryRepo.HydratedEvent, error)
	Claim(eventID, ticket string) error
	ApplyResult(in inventoryRepo.ApplyResultInput) (*inventoryEntity.InventoryEvent, error)
	PendingCount(nowMs int64) (int64, error)
}

// SessionStore persists Web Connector session rows for observability and
// the stale-session sweep.
type SessionStore interface {
	Open(ticket string) error
	Touch(ticket string) error
	SetLastError(ticket, message string) error
	Close(ticket string) error
}

// In-flight request kinds.
const (
	requestKindEvent      = "event"
	requestKindItemQuery  = "item_query"
	requestKindItemCreate = "item_create"
)

// sessionState is the per-ticket conversation state between one
// sendRequestXML and the matching receiveResponseXML.
type sessionState struct {
	ticket    string
	lastError string

	inFlightEventID string
	inFlightTxnType string
	inFlightKind    string

	pendingEvent       *inventoryRepo.HydratedEvent
	pendingOriginal    int
	pendingDropped     int
	pendingItemCreates []*ItemCreateSpec
	inFlightItemCreate *ItemCreateSpec
}

// Service implements the QuickBooks Web Connector contract against the
// sync queue. One request is in flight per ticket at a time; the Web
// Connector keeps polling sendRequestXML while receiveResponseXML reports
// progress below 100.
type Service struct {
	cfg   *config.QbwcConfig
	queue EventQueue
	store SessionStore
	items *ItemCache

	mu       sync.Mutex
	sessions map[string]*sessionState

	now func() int64
}

func NewService(cfg *config.QbwcConfig, queue EventQueue, store SessionStore, items *ItemCache) *Service {
	return &Service{
		cfg:      cfg,
		queue:    queue,
		store:    store,
		items:    items,
		sessions: map[string]*sessionState{},
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

// WithClock overrides the clock (tests).
func (s *Service) WithClock(now func() int64) *Service {
	s.now = now
	return s
}

// Items exposes the cache for the health endpoint and cron refresh.
func (s *Service) Items() *ItemCache {
	return s.items
}

func (s *Service) session(ticket string) *sessionState {
	clean := strings.TrimSpace(ticket)
	if clean == "" {
		clean = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[clean]; ok {
		return existing
	}
	created := &sessionState{ticket: clean}
	s.sessions[clean] = created
	return created
}

func (s *Service) resetInFlight(sess *sessionState) {
	sess.inFlightEventID = ""
	sess.inFlightTxnType = ""
	sess.inFlightKind = ""
	sess.inFlightItemCreate = nil
}

func (s *Service) clearPendingEvent(sess *sessionState) {
	sess.pendingEvent = nil
	sess.pendingOriginal = 0
	sess.pendingDropped = 0
	sess.pendingItemCreates = nil
	sess.inFlightItemCreate = nil
}

func (s *Service) setLastError(sess *sessionState, message string) {
	sess.lastError = message
	if message != "" {
		if err := s.store.SetLastError(sess.ticket, message); err != nil {
			log.Printf("qbwc: record session error: %v", err)
		}
	}
}

// progressPercent keeps the Web Connector polling while eligible work
// remains.
func (s *Service) progressPercent() int {
	count, err := s.queue.PendingCount(s.now())
	if err != nil {
		log.Printf("qbwc: pending count: %v", err)
		return 100
	}
	if count > 0 {
		return 0
	}
	return 100
}

// ServerVersion answers the QBWC serverVersion call.
func (s *Service) ServerVersion() string {
	return s.cfg.ServerVersion
}

// ClientVersion warns outdated Web Connectors; an empty reply accepts the
// client.
func (s *Service) ClientVersion(version string) string {
	minVersion := strings.TrimSpace(s.cfg.MinClientVersion)
	if minVersion == "" {
		return ""
	}
	if parseVersionParts(version) == nil || parseVersionParts(minVersion) == nil {
		return ""
	}
	if CompareVersions(version, minVersion) < 0 {
		return fmt.Sprintf("W:Please upgrade QuickBooks Web Connector to at least %s.", minVersion)
	}
	return ""
}

// Authenticate validates QBWC credentials. The second element of the reply
// names the company file; "nvu" in the first slot rejects the login.
func (s *Service) Authenticate(username, password string) (string, string) {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return "nvu", ""
	}
	if strings.TrimSpace(username) != s.cfg.Username || strings.TrimSpace(password) != s.cfg.Password {
		return "nvu", ""
	}

	ticket := uuid.NewString()
	s.mu.Lock()
	s.sessions[ticket] = &sessionState{ticket: ticket}
	s.mu.Unlock()
	if err := s.store.Open(ticket); err != nil {
		log.Printf("qbwc: open session: %v", err)
	}
	return ticket, s.cfg.CompanyFile
}

func optionalText(v string) string {
	return strings.TrimSpace(v)
}

// buildItemCreateSpec validates the account mappings needed to auto-create
// one missing item. The request id is derived deterministically from the
// event so Web Connector retries reuse it.
func (s *Service) buildItemCreateSpec(ev *inventoryRepo.HydratedEvent, line *inventoryRepo.HydratedLine, ordinal int) (*ItemCreateSpec, error) {
	itemName := lineItemFullName(line)
	if itemName == "" {
		return nil, fmt.Errorf("missing item name for auto-create candidate")
	}

	income := optionalText(line.IncomeAccountFullName)
	if income == "" {
		income = s.cfg.ItemIncomeAccountDefault
	}
	cogs := optionalText(line.CogsAccountFullName)
	if cogs == "" {
		cogs = s.cfg.ItemCogsAccountDefault
	}
	asset := optionalText(line.AssetAccountFullName)
	if asset == "" {
		asset = s.cfg.ItemAssetAccountDefault
	}

	var missing []string
	if income == "" {
		missing = append(missing, "income account")
	}
	if cogs == "" {
		missing = append(missing, "COGS account")
	}
	if asset == "" {
		missing = append(missing, "asset account")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("cannot auto-create item %s: missing %s mapping", line.SKU, strings.Join(missing, ", "))
	}

	seed := fmt.Sprintf("%s|item_add|%s|%d", ev.EventID, strings.ToLower(itemName), ordinal)
	requestID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()

	salesDesc := optionalText(line.SalesDesc)
	if salesDesc == "" {
		salesDesc = optionalText(line.SKU)
	}
	if salesDesc == "" {
		salesDesc = itemName
	}
	purchaseDesc := optionalText(line.PurchaseDesc)
	if purchaseDesc == "" {
		purchaseDesc = salesDesc
	}

	return &ItemCreateSpec{
		EventID:               ev.EventID,
		RequestID:             requestID,
		ItemFullName:          itemName,
		IncomeAccountFullName: income,
		CogsAccountFullName:   cogs,
		AssetAccountFullName:  asset,
		SalesDesc:             salesDesc,
		PurchaseDesc:          purchaseDesc,
		SalesPrice:            line.SalesPrice,
		PurchaseCost:          line.PurchaseCost,
	}, nil
}

// filterEventLines drops lines whose item QuickBooks does not know. With
// auto-create enabled, unknown lines are kept and queued for item
// creation instead.
func (s *Service) filterEventLines(ev *inventoryRepo.HydratedEvent) (*inventoryRepo.HydratedEvent, int, int, []*ItemCreateSpec, error) {
	known, err := s.items.Keys()
	if err != nil {
		return nil, 0, 0, nil, err
	}

	filtered := *ev
	filtered.Lines = nil
	var missingLines []*inventoryRepo.HydratedLine
	for i := range ev.Lines {
		line := &ev.Lines[i]
		candidates := ItemKeyCandidates(line.QBItemFullName, line.SKU)
		if len(candidates) == 0 {
			continue
		}
		matched := false
		for candidate := range candidates {
			if _, ok := known[candidate]; ok {
				matched = true
				break
			}
		}
		if matched {
			filtered.Lines = append(filtered.Lines, *line)
			continue
		}
		if s.cfg.ItemsAutoCreate {
			filtered.Lines = append(filtered.Lines, *line)
			missingLines = append(missingLines, line)
		}
	}

	var creates []*ItemCreateSpec
	if s.cfg.ItemsAutoCreate && len(missingLines) > 0 {
		seen := map[string]bool{}
		ordinal := 0
		for _, line := range missingLines {
			key := normalizeItemKey(lineItemFullName(line))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			spec, err := s.buildItemCreateSpec(ev, line, ordinal)
			if err != nil {
				return nil, 0, 0, nil, err
			}
			creates = append(creates, spec)
			ordinal++
		}
	}

	original := len(ev.Lines)
	sent := len(filtered.Lines)
	dropped := original - sent
	if dropped < 0 {
		dropped = 0
	}
	return &filtered, original, dropped, creates, nil
}

func (s *Service) sendNextItemCreate(sess *sessionState, qbxmlVersion string) (string, error) {
	if len(sess.pendingItemCreates) == 0 {
		return "", fmt.Errorf("no pending item create requests")
	}
	if sess.pendingEvent == nil {
		return "", fmt.Errorf("pending event is required before creating missing items")
	}
	spec := sess.pendingItemCreates[0]
	sess.pendingItemCreates = sess.pendingItemCreates[1:]

	request := BuildItemInventoryAdd(spec, qbxmlVersion)
	sess.inFlightEventID = sess.pendingEvent.EventID
	sess.inFlightTxnType = sess.pendingEvent.QBTxnType
	sess.inFlightKind = requestKindItemCreate
	sess.inFlightItemCreate = spec
	sess.lastError = ""
	return request, nil
}

func (s *Service) sendEventRequest(sess *sessionState, ev *inventoryRepo.HydratedEvent, qbxmlVersion string) (string, error) {
	if len(ev.Lines) == 0 {
		return "", fmt.Errorf("event %s has no lines to send", ev.EventID)
	}
	request, err := BuildEventRequest(ev, qbxmlVersion, s.cfg.DefaultAdjustmentAccount)
	if err != nil {
		return "", err
	}
	if sess.pendingDropped > 0 {
		log.Printf("qbwc: event %s: sending %d of %d lines (%d dropped, items unknown to QuickBooks)",
			ev.EventID, len(ev.Lines), sess.pendingOriginal, sess.pendingDropped)
	}
	sess.inFlightEventID = ev.EventID
	sess.inFlightTxnType = ev.QBTxnType
	sess.inFlightKind = requestKindEvent
	sess.inFlightItemCreate = nil
	sess.lastError = ""
	return request, nil
}

// reportBuildError freezes one event as a non-retryable build failure so
// a poisoned event cannot stall the rest of the queue.
func (s *Service) reportBuildError(sess *sessionState, eventID, txnType string, cause error) {
	notRetryable := false
	_, err := s.queue.ApplyResult(inventoryRepo.ApplyResultInput{
		EventID:      eventID,
		Ticket:       sess.ticket,
		Success:      false,
		QBTxnType:    txnType,
		ErrorCode:    "BUILD_ERROR",
		ErrorMessage: fmt.Sprintf("sendRequestXML build error: %v", cause),
		Retryable:    &notRetryable,
	})
	if err != nil {
		log.Printf("qbwc: record build error for %s: %v", eventID, err)
	}
}

// SendRequestXML hands the Web Connector its next unit of work: an item
// listing query when the cache needs one, then any queued item creations,
// then the next eligible ledger event. An empty reply ends the session's
// work for this cycle.
func (s *Service) SendRequestXML(ticket, _, _, _ string, qbxmlMajor, qbxmlMinor string) string {
	sess := s.session(ticket)
	if err := s.store.Touch(sess.ticket); err != nil {
		log.Printf("qbwc: touch session: %v", err)
	}
	qbxmlVersion := ResolveQbxmlVersion(s.cfg.QbxmlVersion, qbxmlMajor, qbxmlMinor)

	if request := s.items.NextQueryRequest(qbxmlVersion); request != "" {
		s.resetInFlight(sess)
		sess.inFlightKind = requestKindItemQuery
		sess.lastError = ""
		return request
	}

	// A previous receive left work parked on the session: finish the item
	// creations first, then the event itself.
	if len(sess.pendingItemCreates) > 0 || sess.pendingEvent != nil {
		pendingEventID := ""
		pendingTxnType := ""
		if sess.pendingEvent != nil {
			pendingEventID = sess.pendingEvent.EventID
			pendingTxnType = sess.pendingEvent.QBTxnType
		}
		var request string
		var err error
		if len(sess.pendingItemCreates) > 0 {
			request, err = s.sendNextItemCreate(sess, qbxmlVersion)
		} else {
			request, err = s.sendEventRequest(sess, sess.pendingEvent, qbxmlVersion)
		}
		if err != nil {
			if pendingEventID != "" {
				s.reportBuildError(sess, pendingEventID, pendingTxnType, err)
			}
			s.clearPendingEvent(sess)
			s.resetInFlight(sess)
			s.setLastError(sess, fmt.Sprintf("sendRequestXML build error for event %s: %v", pendingEventID, err))
			return ""
		}
		return request
	}

	events, err := s.queue.NextEligible(s.now(), 10)
	if err != nil {
		s.resetInFlight(sess)
		s.setLastError(sess, fmt.Sprintf("sendRequestXML error: %v", err))
		return ""
	}
	if len(events) == 0 {
		s.resetInFlight(sess)
		return ""
	}

	for i := range events {
		ev := &events[i]
		request, err := s.claimAndBuild(sess, ev, qbxmlVersion)
		if err != nil {
			s.reportBuildError(sess, ev.EventID, ev.QBTxnType, err)
			s.clearPendingEvent(sess)
			s.setLastError(sess, fmt.Sprintf("sendRequestXML build error for event %s: %v", ev.EventID, err))
			continue
		}
		if request != "" {
			return request
		}
		// Every line filtered away: already applied as success, try the
		// next event.
	}

	s.resetInFlight(sess)
	return ""
}

// claimAndBuild claims one event, parks it on the session and returns the
// first request to send for it: an item creation when items are missing,
// else the event itself. An empty request with nil error means the event
// was applied without sending anything.
func (s *Service) claimAndBuild(sess *sessionState, ev *inventoryRepo.HydratedEvent, qbxmlVersion string) (string, error) {
	if err := s.queue.Claim(ev.EventID, sess.ticket); err != nil {
		return "", err
	}
	filtered, original, dropped, creates, err := s.filterEventLines(ev)
	if err != nil {
		return "", err
	}
	if len(filtered.Lines) == 0 {
		// Nothing this company file can accept; count the event as synced
		// rather than letting it block the queue forever.
		if _, err := s.queue.ApplyResult(inventoryRepo.ApplyResultInput{
			EventID:   ev.EventID,
			Ticket:    sess.ticket,
			Success:   true,
			QBTxnType: ev.QBTxnType,
		}); err != nil {
			return "", err
		}
		sess.lastError = ""
		s.resetInFlight(sess)
		return "", nil
	}

	sess.pendingEvent = filtered
	sess.pendingOriginal = original
	sess.pendingDropped = dropped
	if len(creates) > 0 {
		sess.pendingItemCreates = creates
		return s.sendNextItemCreate(sess, qbxmlVersion)
	}
	return s.sendEventRequest(sess, filtered, qbxmlVersion)
}

const hresultNoSuchQuery = "0x80040400"

func (s *Service) receiveItemQuery(sess *sessionState, responseXML, hresult, message string) int {
	defer s.resetInFlight(sess)

	if clean := strings.TrimSpace(hresult); clean != "" {
		errorMessage := strings.TrimSpace(message)
		if errorMessage == "" {
			errorMessage = "QuickBooks returned HResult failure."
		}
		if strings.EqualFold(clean, hresultNoSuchQuery) && s.items.SwitchToFallback() {
			s.setLastError(sess, errorMessage+" [Auto-fallback enabled: switching item pull to ItemQueryRq compatibility mode.]")
			// Keep QBWC polling so the fallback query goes out this cycle.
			return 0
		}
		s.items.ResetQuery()
		s.setLastError(sess, errorMessage)
		return s.progressPercent()
	}

	page, err := ParseItemQueryResponse(responseXML)
	if err != nil {
		s.items.ResetQuery()
		s.setLastError(sess, fmt.Sprintf("receiveResponseXML item query error: %v", err))
		return s.progressPercent()
	}
	more, err := s.items.AbsorbQueryPage(page)
	if err != nil {
		s.setLastError(sess, fmt.Sprintf("receiveResponseXML item query error: %v", err))
		return s.progressPercent()
	}
	sess.lastError = ""
	if more {
		return 0
	}
	return s.progressPercent()
}

func (s *Service) receiveItemCreate(sess *sessionState, responseXML, hresult, message string) int {
	defer s.resetInFlight(sess)

	eventID := sess.inFlightEventID
	if eventID == "" && sess.pendingEvent != nil {
		eventID = sess.pendingEvent.EventID
	}
	itemName := ""
	if sess.inFlightItemCreate != nil {
		itemName = sess.inFlightItemCreate.ItemFullName
	}

	if clean := strings.TrimSpace(hresult); clean != "" {
		errorMessage := strings.TrimSpace(message)
		if errorMessage == "" {
			errorMessage = "QuickBooks returned HResult failure."
		}
		if eventID != "" {
			if _, err := s.queue.ApplyResult(inventoryRepo.ApplyResultInput{
				EventID:      eventID,
				Ticket:       sess.ticket,
				Success:      false,
				QBTxnType:    sess.inFlightTxnType,
				ErrorCode:    clean,
				ErrorMessage: errorMessage,
			}); err != nil {
				log.Printf("qbwc: record item create hresult: %v", err)
			}
		}
		s.clearPendingEvent(sess)
		s.setLastError(sess, errorMessage)
		return s.progressPercent()
	}

	parsed := ParseResponse(responseXML)
	// A duplicate-name conflict means the item already exists, which is
	// exactly the state we wanted.
	if parsed.Success || parsed.StatusCode == "3100" {
		if itemName != "" {
			s.items.CacheCreatedItem(itemName)
		}
		sess.lastError = ""
		if len(sess.pendingItemCreates) > 0 || sess.pendingEvent != nil {
			// The parked event goes out on the next sendRequestXML.
			return 0
		}
		return s.progressPercent()
	}

	if eventID != "" {
		errorMessage := parsed.StatusMessage
		if errorMessage == "" {
			errorMessage = "QuickBooks reported an error."
		}
		if _, err := s.queue.ApplyResult(inventoryRepo.ApplyResultInput{
			EventID:      eventID,
			Ticket:       sess.ticket,
			Success:      false,
			QBTxnType:    sess.inFlightTxnType,
			ErrorCode:    parsed.StatusCode,
			ErrorMessage: errorMessage,
		}); err != nil {
			log.Printf("qbwc: record item create failure: %v", err)
		}
	}
	s.clearPendingEvent(sess)
	message = parsed.StatusMessage
	if message == "" {
		message = "QuickBooks reported an error."
	}
	s.setLastError(sess, message)
	return s.progressPercent()
}

// ReceiveResponseXML records the outcome of the in-flight request. The
// return value is the QBWC progress percentage; anything below 100 keeps
// the Web Connector polling sendRequestXML.
func (s *Service) ReceiveResponseXML(ticket, responseXML, hresult, message string) int {
	sess := s.session(ticket)

	switch sess.inFlightKind {
	case requestKindItemQuery:
		return s.receiveItemQuery(sess, responseXML, hresult, message)
	case requestKindItemCreate:
		return s.receiveItemCreate(sess, responseXML, hresult, message)
	}

	eventID := sess.inFlightEventID
	if eventID == "" {
		return 100
	}
	defer func() {
		s.resetInFlight(sess)
		if sess.pendingEvent != nil && sess.pendingEvent.EventID == eventID {
			s.clearPendingEvent(sess)
		}
	}()

	if clean := strings.TrimSpace(hresult); clean != "" {
		errorMessage := strings.TrimSpace(message)
		if errorMessage == "" {
			errorMessage = "QuickBooks returned HResult failure."
		}
		if _, err := s.queue.ApplyResult(inventoryRepo.ApplyResultInput{
			EventID:      eventID,
			Ticket:       sess.ticket,
			Success:      false,
			QBTxnType:    sess.inFlightTxnType,
			ErrorCode:    clean,
			ErrorMessage: errorMessage,
		}); err != nil {
			log.Printf("qbwc: record hresult failure: %v", err)
		}
		s.setLastError(sess, errorMessage)
		return s.progressPercent()
	}

	parsed := ParseResponse(responseXML)
	if parsed.Success {
		txnType := parsed.TxnType
		if txnType == "" {
			txnType = sess.inFlightTxnType
		}
		if _, err := s.queue.ApplyResult(inventoryRepo.ApplyResultInput{
			EventID:   eventID,
			Ticket:    sess.ticket,
			Success:   true,
			QBTxnID:   parsed.TxnID,
			QBTxnType: txnType,
		}); err != nil {
			log.Printf("qbwc: record success: %v", err)
		}
		sess.lastError = ""
		return s.progressPercent()
	}

	txnType := parsed.TxnType
	if txnType == "" {
		txnType = sess.inFlightTxnType
	}
	errorMessage := parsed.StatusMessage
	if errorMessage == "" {
		errorMessage = "QuickBooks reported an error."
	}
	if _, err := s.queue.ApplyResult(inventoryRepo.ApplyResultInput{
		EventID:      eventID,
		Ticket:       sess.ticket,
		Success:      false,
		QBTxnType:    txnType,
		ErrorCode:    parsed.StatusCode,
		ErrorMessage: errorMessage,
	}); err != nil {
		log.Printf("qbwc: record failure: %v", err)
	}
	s.setLastError(sess, errorMessage)
	return s.progressPercent()
}

// GetLastError answers the QBWC getLastError call.
func (s *Service) GetLastError(ticket string) string {
	sess := s.session(ticket)
	if sess.lastError == "" {
		return "No error recorded."
	}
	return sess.lastError
}

// CloseConnection ends a session. QBWC expects the literal "OK".
func (s *Service) CloseConnection(ticket string) string {
	clean := strings.TrimSpace(ticket)
	if clean != "" {
		s.mu.Lock()
		sess, ok := s.sessions[clean]
		delete(s.sessions, clean)
		s.mu.Unlock()
		if ok {
			if sess.inFlightKind == requestKindItemQuery {
				s.items.ResetQuery()
			}
			s.clearPendingEvent(sess)
			s.resetInFlight(sess)
		}
		if err := s.store.Close(clean); err != nil {
			log.Printf("qbwc: close session: %v", err)
		}
	}
	return "OK"
}

// ConnectionError records a transport failure for the in-flight request.
// The event stays on its retry ladder; QBWC expects "done".
func (s *Service) ConnectionError(ticket, hresult, message string) string {
	sess := s.session(ticket)
	errorMessage := strings.TrimSpace(message)
	if errorMessage == "" {
		errorMessage = "QuickBooks connection error."
	}

	if sess.inFlightKind == requestKindItemQuery {
		s.items.ResetQuery()
		s.resetInFlight(sess)
		s.setLastError(sess, errorMessage)
		return "done"
	}

	if eventID := sess.inFlightEventID; eventID != "" {
		code := strings.TrimSpace(hresult)
		if code == "" {
			code = "CONNECTION_ERROR"
		}
		if _, err := s.queue.ApplyResult(inventoryRepo.ApplyResultInput{
			EventID:      eventID,
			Ticket:       sess.ticket,
			Success:      false,
			QBTxnType:    sess.inFlightTxnType,
			ErrorCode:    code,
			ErrorMessage: errorMessage,
		}); err != nil {
			log.Printf("qbwc: record connection error: %v", err)
		}
		s.resetInFlight(sess)
		if sess.pendingEvent != nil && sess.pendingEvent.EventID == eventID {
			s.clearPendingEvent(sess)
		}
	}
	s.setLastError(sess, errorMessage)
	return "done"
}

// GetInteractiveURL answers the interactive-mode call; the bridge has no
// interactive flow.
func (s *Service) GetInteractiveURL() string {
	return ""
}

// InteractiveRejected acknowledges an interactive rejection.
func (s *Service) InteractiveRejected(string) string {
	return "done"
}

// SessionTickets lists live in-memory tickets, oldest-insertion order not
// guaranteed.
func (s *Service) SessionTickets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tickets := make([]string, 0, len(s.sessions))
	for t := range s.sessions {
		tickets = append(tickets, t)
	}
	sort.Strings(tickets)
	return tickets
}
