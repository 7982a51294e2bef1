package qbwc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	inventoryRepo "inventory.GO/model/repository/inventory"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// FormatQty renders a quantity the way qbXML expects: plain decimal,
// trailing zeros trimmed, never scientific notation.
func FormatQty(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "" || s == "-0" {
		return "0"
	}
	return s
}

const memoMaxLen = 4095

// memoForEvent assembles the QuickBooks memo from event metadata so a
// bookkeeper can trace a transaction back to the ledger event.
func memoForEvent(ev *inventoryRepo.HydratedEvent) string {
	pieces := []string{ev.EventType, ev.EventID, ev.CreatedBy, ev.Memo}
	kept := pieces[:0]
	for _, p := range pieces {
		if p != "" {
			kept = append(kept, p)
		}
	}
	joined := strings.TrimSpace(strings.Join(kept, " "))
	if len(joined) > memoMaxLen {
		joined = joined[:memoMaxLen]
	}
	return joined
}

func parseVersionParts(value string) []int {
	var parts []int
	for _, token := range strings.Split(value, ".") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		n, err := strconv.Atoi(token)
		if err != nil || n < 0 {
			return nil
		}
		parts = append(parts, n)
	}
	return parts
}

func parseMajorMinor(value string) (int, int) {
	parts := parseVersionParts(value)
	if len(parts) == 0 {
		return 13, 0
	}
	major := parts[0]
	minor := 0
	if len(parts) > 1 {
		minor = parts[1]
	}
	return major, minor
}

// ResolveQbxmlVersion picks the qbXML version for a request: the lower of
// the configured version and what the Web Connector advertises, so we
// never send grammar the host cannot parse.
func ResolveQbxmlVersion(configured, requestedMajor, requestedMinor string) string {
	cfgMajor, cfgMinor := parseMajorMinor(configured)

	reqMajor, err := strconv.Atoi(strings.TrimSpace(requestedMajor))
	if err != nil || reqMajor < 0 {
		return fmt.Sprintf("%d.%d", cfgMajor, cfgMinor)
	}
	reqMinor, err := strconv.Atoi(strings.TrimSpace(requestedMinor))
	if err != nil || reqMinor < 0 {
		reqMinor = 0
	}

	switch {
	case reqMajor < cfgMajor:
		return fmt.Sprintf("%d.%d", reqMajor, reqMinor)
	case reqMajor > cfgMajor:
		return fmt.Sprintf("%d.%d", cfgMajor, cfgMinor)
	default:
		if reqMinor < cfgMinor {
			cfgMinor = reqMinor
		}
		return fmt.Sprintf("%d.%d", cfgMajor, cfgMinor)
	}
}

// CompareVersions orders dotted version strings; empty or malformed
// versions compare as unknown (0).
func CompareVersions(a, b string) int {
	pa, pb := parseVersionParts(a), parseVersionParts(b)
	for i := 0; i < len(pa) || i < len(pb); i++ {
		va, vb := 0, 0
		if i < len(pa) {
			va = pa[i]
		}
		if i < len(pb) {
			vb = pb[i]
		}
		if va != vb {
			if va < vb {
				return -1
			}
			return 1
		}
	}
	return 0
}

func lineItemFullName(line *inventoryRepo.HydratedLine) string {
	name := strings.TrimSpace(line.QBItemFullName)
	if name == "" {
		name = strings.TrimSpace(line.SKU)
	}
	return name
}

func wrapQbxml(version, body string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<?qbxml version="` + escapeXML(version) + `"?>` +
		`<QBXML><QBXMLMsgsRq onError="stopOnError">` +
		body +
		`</QBXMLMsgsRq></QBXML>`
}

func buildTransferRequest(ev *inventoryRepo.HydratedEvent) (string, error) {
	if len(ev.Lines) == 0 {
		return "", fmt.Errorf("transfer event %s has no lines", ev.EventID)
	}
	if strings.TrimSpace(ev.EffectiveDate) == "" {
		return "", fmt.Errorf("transfer event %s missing effective date", ev.EventID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<TransferInventoryAddRq requestID="%s">`, escapeXML(ev.EventID))
	b.WriteString("<TransferInventoryAdd>")
	fmt.Fprintf(&b, "<TxnDate>%s</TxnDate>", escapeXML(ev.EffectiveDate))
	fmt.Fprintf(&b, "<Memo>%s</Memo>", escapeXML(memoForEvent(ev)))
	for i := range ev.Lines {
		line := &ev.Lines[i]
		itemName := lineItemFullName(line)
		if itemName == "" {
			return "", fmt.Errorf("transfer line is missing an item name (event %s)", ev.EventID)
		}
		from := strings.TrimSpace(line.FromSiteFullName)
		to := strings.TrimSpace(line.ToSiteFullName)
		if from == "" || to == "" {
			return "", fmt.Errorf("transfer line for %s is missing from/to site mapping", line.SKU)
		}
		b.WriteString("<TransferInventoryLineAdd>")
		fmt.Fprintf(&b, "<ItemRef><FullName>%s</FullName></ItemRef>", escapeXML(itemName))
		fmt.Fprintf(&b, "<FromInventorySiteRef><FullName>%s</FullName></FromInventorySiteRef>", escapeXML(from))
		fmt.Fprintf(&b, "<ToInventorySiteRef><FullName>%s</FullName></ToInventorySiteRef>", escapeXML(to))
		fmt.Fprintf(&b, "<QuantityTransferred>%s</QuantityTransferred>", FormatQty(line.Qty))
		b.WriteString("</TransferInventoryLineAdd>")
	}
	b.WriteString("</TransferInventoryAdd></TransferInventoryAddRq>")
	return b.String(), nil
}

func buildAdjustmentRequest(ev *inventoryRepo.HydratedEvent, defaultAccount string) (string, error) {
	if len(ev.Lines) == 0 {
		return "", fmt.Errorf("adjustment event %s has no lines", ev.EventID)
	}
	if strings.TrimSpace(ev.EffectiveDate) == "" {
		return "", fmt.Errorf("adjustment event %s missing effective date", ev.EventID)
	}

	// The adjustment posts against a single account: the first mapped line
	// account, else the configured default.
	accountName := strings.TrimSpace(defaultAccount)
	for i := range ev.Lines {
		if name := strings.TrimSpace(ev.Lines[i].QBAccountFullName); name != "" {
			accountName = name
			break
		}
	}
	if accountName == "" {
		return "", fmt.Errorf("adjustment event %s has no account mapping and no default account", ev.EventID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<InventoryAdjustmentAddRq requestID="%s">`, escapeXML(ev.EventID))
	b.WriteString("<InventoryAdjustmentAdd>")
	fmt.Fprintf(&b, "<AccountRef><FullName>%s</FullName></AccountRef>", escapeXML(accountName))
	fmt.Fprintf(&b, "<TxnDate>%s</TxnDate>", escapeXML(ev.EffectiveDate))
	fmt.Fprintf(&b, "<Memo>%s</Memo>", escapeXML(memoForEvent(ev)))
	guid := ev.IdempotencyKey
	if guid == "" {
		guid = ev.EventID
	}
	fmt.Fprintf(&b, "<ExternalGUID>%s</ExternalGUID>", escapeXML(guid))
	for i := range ev.Lines {
		line := &ev.Lines[i]
		itemName := lineItemFullName(line)
		if itemName == "" {
			return "", fmt.Errorf("adjustment line is missing an item name (event %s)", ev.EventID)
		}
		site := strings.TrimSpace(line.SiteFullName)
		if site == "" {
			return "", fmt.Errorf("adjustment line for %s is missing site mapping", line.SKU)
		}
		var qty string
		if line.NewQty != nil {
			qty = fmt.Sprintf("<NewQuantity>%s</NewQuantity>", FormatQty(*line.NewQty))
		} else {
			qty = fmt.Sprintf("<QuantityDifference>%s</QuantityDifference>", FormatQty(line.Qty))
		}
		b.WriteString("<InventoryAdjustmentLineAdd>")
		fmt.Fprintf(&b, "<ItemRef><FullName>%s</FullName></ItemRef>", escapeXML(itemName))
		fmt.Fprintf(&b, "<InventorySiteRef><FullName>%s</FullName></InventorySiteRef>", escapeXML(site))
		fmt.Fprintf(&b, "<QuantityAdjustment>%s</QuantityAdjustment>", qty)
		b.WriteString("</InventoryAdjustmentLineAdd>")
	}
	b.WriteString("</InventoryAdjustmentAdd></InventoryAdjustmentAddRq>")
	return b.String(), nil
}

// BuildEventRequest renders the qbXML document for one hydrated event.
func BuildEventRequest(ev *inventoryRepo.HydratedEvent, qbxmlVersion, defaultAdjustmentAccount string) (string, error) {
	if ev.EventID == "" {
		return "", fmt.Errorf("event is missing an id")
	}
	var body string
	var err error
	switch ev.EventType {
	case "transfer":
		body, err = buildTransferRequest(ev)
	case "adjustment":
		body, err = buildAdjustmentRequest(ev, defaultAdjustmentAccount)
	default:
		return "", fmt.Errorf("unsupported event type %q", ev.EventType)
	}
	if err != nil {
		return "", err
	}
	return wrapQbxml(qbxmlVersion, body), nil
}

// ItemCreateSpec describes one ItemInventoryAddRq for a SKU QuickBooks
// does not know yet.
type ItemCreateSpec struct {
	EventID      string
	RequestID    string
	ItemFullName string

	IncomeAccountFullName string
	CogsAccountFullName   string
	AssetAccountFullName  string

	SalesDesc    string
	PurchaseDesc string
	SalesPrice   *float64
	PurchaseCost *float64
}

// BuildItemInventoryAdd renders the qbXML for creating an inventory item.
func BuildItemInventoryAdd(spec *ItemCreateSpec, qbxmlVersion string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<ItemInventoryAddRq requestID="%s">`, escapeXML(spec.RequestID))
	b.WriteString("<ItemInventoryAdd>")
	fmt.Fprintf(&b, "<Name>%s</Name>", escapeXML(spec.ItemFullName))
	if spec.SalesDesc != "" {
		fmt.Fprintf(&b, "<SalesDesc>%s</SalesDesc>", escapeXML(spec.SalesDesc))
	}
	if spec.SalesPrice != nil {
		fmt.Fprintf(&b, "<SalesPrice>%s</SalesPrice>", FormatQty(*spec.SalesPrice))
	}
	fmt.Fprintf(&b, "<IncomeAccountRef><FullName>%s</FullName></IncomeAccountRef>", escapeXML(spec.IncomeAccountFullName))
	if spec.PurchaseDesc != "" {
		fmt.Fprintf(&b, "<PurchaseDesc>%s</PurchaseDesc>", escapeXML(spec.PurchaseDesc))
	}
	if spec.PurchaseCost != nil {
		fmt.Fprintf(&b, "<PurchaseCost>%s</PurchaseCost>", FormatQty(*spec.PurchaseCost))
	}
	fmt.Fprintf(&b, "<COGSAccountRef><FullName>%s</FullName></COGSAccountRef>", escapeXML(spec.CogsAccountFullName))
	fmt.Fprintf(&b, "<AssetAccountRef><FullName>%s</FullName></AssetAccountRef>", escapeXML(spec.AssetAccountFullName))
	b.WriteString("</ItemInventoryAdd></ItemInventoryAddRq>")
	return wrapQbxml(qbxmlVersion, b.String())
}

// BuildItemsQuery renders the item listing query. The first page starts an
// iterator; continuation pages carry the iterator id QuickBooks returned.
// Fallback mode uses the broader ItemQueryRq grammar for hosts that reject
// ItemInventoryQueryRq.
func BuildItemsQuery(qbxmlVersion string, fallback bool, iteratorID string, maxReturned int) string {
	if maxReturned < 1 {
		maxReturned = 1
	}
	var b strings.Builder
	tag := "ItemInventoryQueryRq"
	if fallback {
		tag = "ItemQueryRq"
	}
	if iteratorID != "" {
		fmt.Fprintf(&b, `<%s iterator="Continue" iteratorID="%s">`, tag, escapeXML(iteratorID))
	} else {
		fmt.Fprintf(&b, `<%s iterator="Start">`, tag)
		if !fallback {
			b.WriteString("<ActiveStatus>All</ActiveStatus>")
		}
	}
	fmt.Fprintf(&b, "<MaxReturned>%d</MaxReturned>", maxReturned)
	fmt.Fprintf(&b, "</%s>", tag)
	return wrapQbxml(qbxmlVersion, b.String())
}

// ResponseResult is the parsed outcome of one qbXML transaction response.
type ResponseResult struct {
	Success        bool
	StatusCode     string
	StatusSeverity string
	StatusMessage  string
	TxnID          string
	TxnType        string
}

func isQbSuccess(statusCode, statusSeverity string) bool {
	return (statusCode == "0" || statusCode == "1") &&
		!strings.EqualFold(statusSeverity, "error")
}

func attrValue(attrs []xml.Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// ParseResponse finds the first *Rs node carrying a statusCode attribute
// and reads its status, TxnID and transaction type. Malformed and empty
// payloads come back as failed results, never as parse panics; the sync
// loop treats them like any other QuickBooks error.
func ParseResponse(responseXML string) ResponseResult {
	fail := func(code, message string) ResponseResult {
		return ResponseResult{StatusCode: code, StatusSeverity: "Error", StatusMessage: message}
	}
	if strings.TrimSpace(responseXML) == "" {
		return fail("EMPTY_RESPONSE", "Empty qbXML response.")
	}

	dec := xml.NewDecoder(strings.NewReader(responseXML))
	var result *ResponseResult
	depthInRs := 0
	inTxnID := false
	for {
		tok, err := dec.Token()
		if err != nil {
			if result == nil {
				if errors.Is(err, io.EOF) {
					return fail("NO_RS_NODE", "No *Rs node found in qbXML response.")
				}
				return fail("PARSE_ERROR", fmt.Sprintf("Unable to parse qbXML response: %v", err))
			}
			return *result
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if result == nil {
				code, ok := attrValue(t.Attr, "statusCode")
				if strings.HasSuffix(name, "Rs") && ok {
					severity, _ := attrValue(t.Attr, "statusSeverity")
					if severity == "" {
						severity = "Error"
					}
					message, _ := attrValue(t.Attr, "statusMessage")
					result = &ResponseResult{
						Success:        isQbSuccess(code, severity),
						StatusCode:     code,
						StatusSeverity: severity,
						StatusMessage:  message,
						TxnType:        strings.TrimSuffix(name, "Rs"),
					}
					depthInRs = 1
				}
			} else {
				depthInRs++
				inTxnID = name == "TxnID" && result.TxnID == ""
			}
		case xml.CharData:
			if inTxnID {
				if text := strings.TrimSpace(string(t)); text != "" {
					result.TxnID = text
				}
			}
		case xml.EndElement:
			inTxnID = false
			if result != nil {
				depthInRs--
				if depthInRs <= 0 {
					return *result
				}
			}
		}
	}
}

// ItemQueryPage is one parsed page of an item listing response.
type ItemQueryPage struct {
	Keys           map[string]struct{}
	Names          []string
	IteratorID     string
	RemainingCount int
}

// ParseItemQueryResponse reads an ItemInventoryQueryRs (or the fallback
// ItemQueryRs) page. Only ItemInventoryRet entries count; the fallback
// grammar returns every item type and the rest must be ignored.
func ParseItemQueryResponse(responseXML string) (*ItemQueryPage, error) {
	if strings.TrimSpace(responseXML) == "" {
		return nil, fmt.Errorf("empty item query response")
	}
	dec := xml.NewDecoder(strings.NewReader(responseXML))

	page := &ItemQueryPage{Keys: map[string]struct{}{}}
	foundRs := false
	inRet := false
	var retFullName, retName string
	var captureField string

	flushRet := func() {
		name := retFullName
		if name == "" {
			name = retName
		}
		if name != "" {
			AddItemKeyVariants(page.Keys, name)
			page.Names = append(page.Names, name)
		}
		retFullName, retName = "", ""
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			if foundRs {
				return page, nil
			}
			return nil, fmt.Errorf("parse item query response: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch {
			case !foundRs && (name == "ItemInventoryQueryRs" || name == "ItemQueryRs"):
				foundRs = true
				code, _ := attrValue(t.Attr, "statusCode")
				severity, _ := attrValue(t.Attr, "statusSeverity")
				if severity == "" {
					severity = "Error"
				}
				if !isQbSuccess(code, severity) {
					message, _ := attrValue(t.Attr, "statusMessage")
					if message == "" {
						message = "Unknown status message."
					}
					return nil, fmt.Errorf("item query failed (statusCode=%s, statusSeverity=%s): %s", code, severity, message)
				}
				page.IteratorID, _ = attrValue(t.Attr, "iteratorID")
				if remaining, ok := attrValue(t.Attr, "iteratorRemainingCount"); ok {
					if n, err := strconv.Atoi(strings.TrimSpace(remaining)); err == nil {
						page.RemainingCount = n
					}
				}
			case foundRs && name == "ItemInventoryRet":
				inRet = true
			case inRet && (name == "FullName" || name == "Name"):
				captureField = name
			}
		case xml.CharData:
			if captureField != "" {
				text := strings.TrimSpace(string(t))
				if text != "" {
					if captureField == "FullName" {
						retFullName = text
					} else if retName == "" {
						retName = text
					}
				}
			}
		case xml.EndElement:
			captureField = ""
			switch t.Name.Local {
			case "ItemInventoryRet":
				flushRet()
				inRet = false
			case "ItemInventoryQueryRs", "ItemQueryRs":
				if foundRs {
					return page, nil
				}
			}
		}
	}
}
