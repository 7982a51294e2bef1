package qbwc

import (
	"fmt"
	"strings"
	"testing"

	"inventory.GO/config"
	inventoryEntity "inventory.GO/model/entity/inventory"
	inventoryRepo "inventory.GO/model/repository/inventory"
)

type fakeQueue struct {
	events   []inventoryRepo.HydratedEvent
	claims   []string
	results  []inventoryRepo.ApplyResultInput
	claimErr error
}

func (q *fakeQueue) NextEligible(int64, int) ([]inventoryRepo.HydratedEvent, error) {
	out := make([]inventoryRepo.HydratedEvent, len(q.events))
	copy(out, q.events)
	return out, nil
}

func (q *fakeQueue) Claim(eventID, ticket string) error {
	if q.claimErr != nil {
		return q.claimErr
	}
	q.claims = append(q.claims, eventID)
	return nil
}

func (q *fakeQueue) ApplyResult(in inventoryRepo.ApplyResultInput) (*inventoryEntity.InventoryEvent, error) {
	q.results = append(q.results, in)
	kept := q.events[:0]
	for _, ev := range q.events {
		if ev.EventID != in.EventID {
			kept = append(kept, ev)
		}
	}
	q.events = kept
	return &inventoryEntity.InventoryEvent{EventID: in.EventID}, nil
}

func (q *fakeQueue) PendingCount(int64) (int64, error) {
	return int64(len(q.events)), nil
}

type fakeStore struct {
	opened  []string
	closed  []string
	touched int
	errors  []string
}

func (s *fakeStore) Open(ticket string) error  { s.opened = append(s.opened, ticket); return nil }
func (s *fakeStore) Touch(string) error        { s.touched++; return nil }
func (s *fakeStore) Close(ticket string) error { s.closed = append(s.closed, ticket); return nil }
func (s *fakeStore) SetLastError(_, message string) error {
	s.errors = append(s.errors, message)
	return nil
}

func serviceConfig(t *testing.T, autoCreate bool) *config.QbwcConfig {
	t.Helper()
	return &config.QbwcConfig{
		Username:                 "webconnector",
		Password:                 "secret",
		CompanyFile:              `C:\QB\acme.qbw`,
		QbxmlVersion:             "13.0",
		ServerVersion:            "inventory-qbwc-test",
		MinClientVersion:         "2.1.0.30",
		DefaultAdjustmentAccount: "Inventory Adjustments",
		ItemsSource:              "csv",
		ItemsCSV: writeItemsCSV(t, strings.Join([]string{
			"Type,Sku",
			"Inventory Part,WID-1",
			"Inventory Part,Widgets:WID-2",
		}, "\n")),
		ItemsQueryMax:            500,
		ItemsAutoCreate:          autoCreate,
		ItemIncomeAccountDefault: "Sales",
		ItemCogsAccountDefault:   "COGS",
		ItemAssetAccountDefault:  "Inventory Asset",
	}
}

func newTestService(t *testing.T, queue *fakeQueue, autoCreate bool) (*Service, *fakeStore) {
	t.Helper()
	cfg := serviceConfig(t, autoCreate)
	store := &fakeStore{}
	svc := NewService(cfg, queue, store, NewItemCache(cfg, nil))
	return svc, store
}

func transferEvent(id, sku string) inventoryRepo.HydratedEvent {
	return inventoryRepo.HydratedEvent{
		EventID:        id,
		EventType:      "transfer",
		EffectiveDate:  "2026-08-01",
		IdempotencyKey: id,
		QBTxnType:      "TransferInventoryAdd",
		Lines: []inventoryRepo.HydratedLine{
			{SKU: sku, Qty: 2, QBItemFullName: sku, FromSiteFullName: "Main", ToSiteFullName: "Floor"},
		},
	}
}

func TestAuthenticate(t *testing.T) {
	svc, store := newTestService(t, &fakeQueue{}, false)

	ticket, companyFile := svc.Authenticate("webconnector", "secret")
	if ticket == "" || ticket == "nvu" {
		t.Fatalf("ticket = %q", ticket)
	}
	if companyFile != `C:\QB\acme.qbw` {
		t.Errorf("company file = %q", companyFile)
	}
	if len(store.opened) != 1 || store.opened[0] != ticket {
		t.Errorf("session not persisted: %v", store.opened)
	}

	if got, _ := svc.Authenticate("webconnector", "wrong"); got != "nvu" {
		t.Errorf("bad password accepted: %q", got)
	}
	if got, _ := svc.Authenticate("intruder", "secret"); got != "nvu" {
		t.Errorf("bad user accepted: %q", got)
	}

	// Unconfigured credentials reject everyone.
	svc.cfg.Username = ""
	if got, _ := svc.Authenticate("", ""); got != "nvu" {
		t.Errorf("blank config accepted login: %q", got)
	}
}

func TestClientVersion(t *testing.T) {
	svc, _ := newTestService(t, &fakeQueue{}, false)

	if got := svc.ClientVersion("2.1.0.30"); got != "" {
		t.Errorf("exact version warned: %q", got)
	}
	if got := svc.ClientVersion("2.3.0.36"); got != "" {
		t.Errorf("newer version warned: %q", got)
	}
	if got := svc.ClientVersion("2.0.0.0"); !strings.HasPrefix(got, "W:") {
		t.Errorf("old version not warned: %q", got)
	}
	if got := svc.ClientVersion("garbage"); got != "" {
		t.Errorf("unparseable version warned: %q", got)
	}

	svc.cfg.MinClientVersion = ""
	if got := svc.ClientVersion("0.0.1"); got != "" {
		t.Errorf("no minimum configured but warned: %q", got)
	}
}

func TestSendReceive_FullCycle(t *testing.T) {
	queue := &fakeQueue{events: []inventoryRepo.HydratedEvent{transferEvent("ev-1", "WID-1")}}
	svc, _ := newTestService(t, queue, false)
	ticket, _ := svc.Authenticate("webconnector", "secret")

	request := svc.SendRequestXML(ticket, "", "", "", "13", "0")
	if !strings.Contains(request, `<TransferInventoryAddRq requestID="ev-1">`) {
		t.Fatalf("request:\n%s", request)
	}
	if len(queue.claims) != 1 || queue.claims[0] != "ev-1" {
		t.Errorf("claims = %v", queue.claims)
	}

	progress := svc.ReceiveResponseXML(ticket, `<QBXML><QBXMLMsgsRs>`+
		`<TransferInventoryAddRs statusCode="0" statusSeverity="Info">`+
		`<TransferInventoryRet><TxnID>T-9</TxnID></TransferInventoryRet>`+
		`</TransferInventoryAddRs></QBXMLMsgsRs></QBXML>`, "", "")
	if progress != 100 {
		t.Errorf("progress = %d, want 100 with empty queue", progress)
	}
	if len(queue.results) != 1 {
		t.Fatalf("results = %v", queue.results)
	}
	result := queue.results[0]
	if !result.Success || result.QBTxnID != "T-9" || result.QBTxnType != "TransferInventoryAdd" {
		t.Errorf("result = %+v", result)
	}
	if result.Ticket != ticket {
		t.Errorf("result ticket = %q", result.Ticket)
	}

	// Queue drained: next send returns no work.
	if got := svc.SendRequestXML(ticket, "", "", "", "13", "0"); got != "" {
		t.Errorf("extra work after drain:\n%s", got)
	}
	if got := svc.CloseConnection(ticket); got != "OK" {
		t.Errorf("CloseConnection = %q", got)
	}
}

func TestSendReceive_FailureWalksLadder(t *testing.T) {
	queue := &fakeQueue{events: []inventoryRepo.HydratedEvent{transferEvent("ev-1", "WID-1")}}
	svc, _ := newTestService(t, queue, false)
	ticket, _ := svc.Authenticate("webconnector", "secret")

	svc.SendRequestXML(ticket, "", "", "", "13", "0")
	svc.ReceiveResponseXML(ticket, `<QBXML><QBXMLMsgsRs>`+
		`<TransferInventoryAddRs statusCode="3200" statusSeverity="Error" statusMessage="edit sequence"/>`+
		`</QBXMLMsgsRs></QBXML>`, "", "")

	if len(queue.results) != 1 {
		t.Fatalf("results = %v", queue.results)
	}
	result := queue.results[0]
	if result.Success || result.ErrorCode != "3200" || result.ErrorMessage != "edit sequence" {
		t.Errorf("result = %+v", result)
	}
	if result.Retryable != nil {
		t.Errorf("event failures defer retryability to the code table, got override %v", *result.Retryable)
	}
	if got := svc.GetLastError(ticket); got != "edit sequence" {
		t.Errorf("GetLastError = %q", got)
	}
}

func TestSendRequestXML_BuildErrorIsolation(t *testing.T) {
	broken := transferEvent("ev-bad", "WID-1")
	broken.Lines[0].ToSiteFullName = "" // unmapped site, request cannot build
	queue := &fakeQueue{events: []inventoryRepo.HydratedEvent{broken, transferEvent("ev-good", "WID-1")}}
	svc, _ := newTestService(t, queue, false)
	ticket, _ := svc.Authenticate("webconnector", "secret")

	request := svc.SendRequestXML(ticket, "", "", "", "13", "0")
	if !strings.Contains(request, `requestID="ev-good"`) {
		t.Fatalf("good event not sent after bad one:\n%s", request)
	}

	if len(queue.results) != 1 {
		t.Fatalf("results = %+v", queue.results)
	}
	result := queue.results[0]
	if result.EventID != "ev-bad" || result.Success {
		t.Errorf("result = %+v", result)
	}
	if result.ErrorCode != "BUILD_ERROR" {
		t.Errorf("error code = %q", result.ErrorCode)
	}
	if result.Retryable == nil || *result.Retryable {
		t.Error("build errors must be non-retryable")
	}
}

func TestSendRequestXML_AllLinesFilteredAppliesSuccess(t *testing.T) {
	queue := &fakeQueue{events: []inventoryRepo.HydratedEvent{transferEvent("ev-1", "UNKNOWN-SKU")}}
	svc, _ := newTestService(t, queue, false)
	ticket, _ := svc.Authenticate("webconnector", "secret")

	if request := svc.SendRequestXML(ticket, "", "", "", "13", "0"); request != "" {
		t.Fatalf("unexpected request:\n%s", request)
	}
	if len(queue.results) != 1 {
		t.Fatalf("results = %+v", queue.results)
	}
	if !queue.results[0].Success {
		t.Errorf("filtered-away event not applied as success: %+v", queue.results[0])
	}
}

func TestSendRequestXML_ClaimFailureSkipsEvent(t *testing.T) {
	queue := &fakeQueue{
		events:   []inventoryRepo.HydratedEvent{transferEvent("ev-1", "WID-1")},
		claimErr: fmt.Errorf("%w: ev-1", inventoryRepo.ErrNotClaimable),
	}
	svc, _ := newTestService(t, queue, false)
	ticket, _ := svc.Authenticate("webconnector", "secret")

	if request := svc.SendRequestXML(ticket, "", "", "", "13", "0"); request != "" {
		t.Fatalf("unexpected request:\n%s", request)
	}
	// The claim failure is reported as a build error against the event.
	if len(queue.results) != 1 || queue.results[0].ErrorCode != "BUILD_ERROR" {
		t.Errorf("results = %+v", queue.results)
	}
}

func TestAutoCreate_MissingItemFlow(t *testing.T) {
	queue := &fakeQueue{events: []inventoryRepo.HydratedEvent{transferEvent("ev-1", "NEW-SKU")}}
	svc, _ := newTestService(t, queue, true)
	ticket, _ := svc.Authenticate("webconnector", "secret")

	// First request creates the missing item.
	request := svc.SendRequestXML(ticket, "", "", "", "13", "0")
	if !strings.Contains(request, "<ItemInventoryAddRq") || !strings.Contains(request, "<Name>NEW-SKU</Name>") {
		t.Fatalf("expected item create first:\n%s", request)
	}
	if !strings.Contains(request, "<IncomeAccountRef><FullName>Sales</FullName></IncomeAccountRef>") {
		t.Errorf("config defaults not applied:\n%s", request)
	}

	// Item created; QBWC must keep polling for the parked event.
	progress := svc.ReceiveResponseXML(ticket, `<QBXML><QBXMLMsgsRs>`+
		`<ItemInventoryAddRs statusCode="0" statusSeverity="Info"/>`+
		`</QBXMLMsgsRs></QBXML>`, "", "")
	if progress != 0 {
		t.Fatalf("progress = %d, want 0 while event is parked", progress)
	}

	// Second request sends the event itself; the created item now passes
	// the filter.
	request = svc.SendRequestXML(ticket, "", "", "", "13", "0")
	if !strings.Contains(request, `<TransferInventoryAddRq requestID="ev-1">`) {
		t.Fatalf("parked event not sent:\n%s", request)
	}

	svc.ReceiveResponseXML(ticket, `<QBXML><QBXMLMsgsRs>`+
		`<TransferInventoryAddRs statusCode="0" statusSeverity="Info"/>`+
		`</QBXMLMsgsRs></QBXML>`, "", "")
	if len(queue.results) != 1 || !queue.results[0].Success {
		t.Errorf("results = %+v", queue.results)
	}
}

func TestAutoCreate_DuplicateNameCountsAsSuccess(t *testing.T) {
	queue := &fakeQueue{events: []inventoryRepo.HydratedEvent{transferEvent("ev-1", "NEW-SKU")}}
	svc, _ := newTestService(t, queue, true)
	ticket, _ := svc.Authenticate("webconnector", "secret")

	svc.SendRequestXML(ticket, "", "", "", "13", "0")
	progress := svc.ReceiveResponseXML(ticket, `<QBXML><QBXMLMsgsRs>`+
		`<ItemInventoryAddRs statusCode="3100" statusSeverity="Error" statusMessage="name already in use"/>`+
		`</QBXMLMsgsRs></QBXML>`, "", "")
	if progress != 0 {
		t.Fatalf("progress = %d, want 0 (event still parked)", progress)
	}
	if len(queue.results) != 0 {
		t.Fatalf("duplicate name recorded as failure: %+v", queue.results)
	}

	request := svc.SendRequestXML(ticket, "", "", "", "13", "0")
	if !strings.Contains(request, `requestID="ev-1"`) {
		t.Errorf("event not resubmitted after duplicate-name create:\n%s", request)
	}
}

func TestAutoCreate_ItemCreateFailureFailsEvent(t *testing.T) {
	queue := &fakeQueue{events: []inventoryRepo.HydratedEvent{transferEvent("ev-1", "NEW-SKU")}}
	svc, _ := newTestService(t, queue, true)
	ticket, _ := svc.Authenticate("webconnector", "secret")

	svc.SendRequestXML(ticket, "", "", "", "13", "0")
	svc.ReceiveResponseXML(ticket, `<QBXML><QBXMLMsgsRs>`+
		`<ItemInventoryAddRs statusCode="3140" statusSeverity="Error" statusMessage="invalid account ref"/>`+
		`</QBXMLMsgsRs></QBXML>`, "", "")

	if len(queue.results) != 1 {
		t.Fatalf("results = %+v", queue.results)
	}
	result := queue.results[0]
	if result.Success || result.EventID != "ev-1" || result.ErrorCode != "3140" {
		t.Errorf("result = %+v", result)
	}
	// Pending state cleared: nothing parked for the next cycle.
	if request := svc.SendRequestXML(ticket, "", "", "", "13", "0"); request != "" {
		t.Errorf("stale parked work after create failure:\n%s", request)
	}
}

func TestConnectionError(t *testing.T) {
	queue := &fakeQueue{events: []inventoryRepo.HydratedEvent{transferEvent("ev-1", "WID-1")}}
	svc, _ := newTestService(t, queue, false)
	ticket, _ := svc.Authenticate("webconnector", "secret")

	svc.SendRequestXML(ticket, "", "", "", "13", "0")
	if got := svc.ConnectionError(ticket, "0x80040408", "could not start QuickBooks"); got != "done" {
		t.Errorf("ConnectionError = %q", got)
	}
	if len(queue.results) != 1 {
		t.Fatalf("results = %+v", queue.results)
	}
	result := queue.results[0]
	if result.Success || result.ErrorCode != "0x80040408" {
		t.Errorf("result = %+v", result)
	}
	if result.Retryable != nil {
		t.Error("connection errors stay on the retry ladder")
	}
}

func TestGetLastError_Default(t *testing.T) {
	svc, _ := newTestService(t, &fakeQueue{}, false)
	if got := svc.GetLastError("any"); got != "No error recorded." {
		t.Errorf("GetLastError = %q", got)
	}
}

func TestInteractiveStubs(t *testing.T) {
	svc, _ := newTestService(t, &fakeQueue{}, false)
	if svc.GetInteractiveURL() != "" {
		t.Error("interactive URL should be empty")
	}
	if svc.InteractiveRejected("t") != "done" {
		t.Error("interactiveRejected should answer done")
	}
	if svc.ServerVersion() != "inventory-qbwc-test" {
		t.Errorf("ServerVersion = %q", svc.ServerVersion())
	}
}
