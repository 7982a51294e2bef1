package qbwc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"inventory.GO/api"
	"inventory.GO/config"
	inventoryRepo "inventory.GO/model/repository/inventory"
	qbwcService "inventory.GO/service/qbwc"
)

const qbwcNamespace = "http://developer.intuit.com/"

var (
	sharedOnce sync.Once
	sharedSvc  *qbwcService.Service
)

// SharedService returns the process-wide bridge service. The SOAP
// endpoint and the cron jobs must share one instance so they see the
// same item cache and sessions.
func SharedService(db *gorm.DB) *qbwcService.Service {
	sharedOnce.Do(func() {
		cfg := config.LoadQbwcConfig()
		sharedSvc = qbwcService.NewService(
			cfg,
			inventoryRepo.NewQueueRepository(db),
			inventoryRepo.NewSessionRepository(db),
			qbwcService.NewItemCache(cfg, config.RedisClient),
		)
	})
	return sharedSvc
}

func init() {
	api.RegisterRoute(func(e *echo.Echo, db *gorm.DB) {
		NewHandler(SharedService(db)).Mount(e)
	})
}

// Handler adapts the Web Connector SOAP protocol onto the bridge service.
type Handler struct {
	svc *qbwcService.Service
}

func NewHandler(svc *qbwcService.Service) *Handler {
	return &Handler{svc: svc}
}

// Mount registers the SOAP endpoint and a small status page at root
// level, outside the authenticated /api group. The Web Connector
// authenticates inside the SOAP exchange itself.
func (h *Handler) Mount(e *echo.Echo) {
	e.POST("/qbwc", h.handleSOAP)
	e.GET("/qbwc", h.status)
}

func (h *Handler) status(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "ok",
		"itemCache": h.svc.Items().Snapshot(false),
		"sessions":  h.svc.SessionTickets(),
	})
}

// soapCall is one decoded method invocation: the element under Body and
// its child parameters as flat strings.
type soapCall struct {
	Method string
	Params map[string]string
}

func parseSOAPRequest(body []byte) (*soapCall, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	inBody := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, errors.New("no method element in SOAP body")
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !inBody {
			if start.Name.Local == "Body" {
				inBody = true
			}
			continue
		}

		call := &soapCall{Method: start.Name.Local, Params: map[string]string{}}
		for {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			if end, ok := tok.(xml.EndElement); ok && end.Name.Local == call.Method {
				return call, nil
			}
			if child, ok := tok.(xml.StartElement); ok {
				var value string
				if err := dec.DecodeElement(&value, &child); err != nil {
					return nil, err
				}
				call.Params[child.Name.Local] = value
			}
		}
	}
}

var soapEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func soapEnvelope(inner string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<soap:Body>` + inner + `</soap:Body></soap:Envelope>`
}

// stringResponse renders a single-string result for the given method.
func stringResponse(method, result string) string {
	return soapEnvelope(fmt.Sprintf(
		`<%sResponse xmlns=%q><%sResult>%s</%sResult></%sResponse>`,
		method, qbwcNamespace, method, soapEscaper.Replace(result), method, method))
}

func intResponse(method string, result int) string {
	return soapEnvelope(fmt.Sprintf(
		`<%sResponse xmlns=%q><%sResult>%d</%sResult></%sResponse>`,
		method, qbwcNamespace, method, result, method, method))
}

// authenticateResponse renders the two-element string array the Web
// Connector expects from authenticate.
func authenticateResponse(ticket, companyFile string) string {
	return soapEnvelope(fmt.Sprintf(
		`<authenticateResponse xmlns=%q><authenticateResult>`+
			`<string>%s</string><string>%s</string>`+
			`</authenticateResult></authenticateResponse>`,
		qbwcNamespace, soapEscaper.Replace(ticket), soapEscaper.Replace(companyFile)))
}

func soapFault(message string) string {
	return soapEnvelope(fmt.Sprintf(
		`<soap:Fault><faultcode>soap:Client</faultcode><faultstring>%s</faultstring></soap:Fault>`,
		soapEscaper.Replace(message)))
}

func (h *Handler) handleSOAP(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.Blob(http.StatusBadRequest, echo.MIMETextXMLCharsetUTF8, []byte(soapFault("unreadable request body")))
	}
	call, err := parseSOAPRequest(raw)
	if err != nil {
		log.Printf("[qbwc] malformed SOAP request: %v", err)
		return c.Blob(http.StatusBadRequest, echo.MIMETextXMLCharsetUTF8, []byte(soapFault("malformed SOAP request")))
	}

	p := call.Params
	var payload string
	switch call.Method {
	case "serverVersion":
		payload = stringResponse(call.Method, h.svc.ServerVersion())
	case "clientVersion":
		payload = stringResponse(call.Method, h.svc.ClientVersion(p["strVersion"]))
	case "authenticate":
		ticket, companyFile := h.svc.Authenticate(p["strUserName"], p["strPassword"])
		payload = authenticateResponse(ticket, companyFile)
	case "sendRequestXML":
		request := h.svc.SendRequestXML(
			p["ticket"], p["strHCPResponse"], p["strCompanyFileName"], p["qbXMLCountry"],
			p["qbXMLMajorVers"], p["qbXMLMinorVers"])
		payload = stringResponse(call.Method, request)
	case "receiveResponseXML":
		progress := h.svc.ReceiveResponseXML(p["ticket"], p["response"], p["hresult"], p["message"])
		payload = intResponse(call.Method, progress)
	case "getLastError":
		payload = stringResponse(call.Method, h.svc.GetLastError(p["ticket"]))
	case "closeConnection":
		payload = stringResponse(call.Method, h.svc.CloseConnection(p["ticket"]))
	case "connectionError":
		payload = stringResponse(call.Method, h.svc.ConnectionError(p["ticket"], p["hresult"], p["message"]))
	case "getInteractiveURL":
		payload = stringResponse(call.Method, h.svc.GetInteractiveURL())
	case "interactiveRejected":
		payload = stringResponse(call.Method, h.svc.InteractiveRejected(p["reason"]))
	default:
		log.Printf("[qbwc] unknown SOAP method %q", call.Method)
		return c.Blob(http.StatusBadRequest, echo.MIMETextXMLCharsetUTF8,
			[]byte(soapFault("unknown method "+strconv.Quote(call.Method))))
	}
	return c.Blob(http.StatusOK, echo.MIMETextXMLCharsetUTF8, []byte(payload))
}
