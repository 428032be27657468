package businessflow

import (
	"strings"

	"github.com/udyogsetu/messaging-core/app/services"
	"github.com/udyogsetu/messaging-core/models"
)

// CatalogEntry is one versionable template definition keyed by business
// vertical and trigger event. Entries are vendor-agnostic; adapters map
// them onto their own component schemas at submission time.
type CatalogEntry struct {
	Vertical     string
	TriggerEvent string
	TemplateName string
	Category     models.TemplateCategory
	HeaderText   string
	BodyText     string
	FooterText   string
	Buttons      []models.TemplateButton
	SampleParams []string
}

// ToSubmitParams converts the entry to the vendor-agnostic submission shape.
func (e CatalogEntry) ToSubmitParams(language string) services.TemplateSubmitParams {
	if language == "" {
		language = "en"
	}
	return services.TemplateSubmitParams{
		Name:             e.TemplateName,
		Category:         e.Category,
		Language:         language,
		HeaderText:       e.HeaderText,
		BodyText:         e.BodyText,
		FooterText:       e.FooterText,
		Buttons:          e.Buttons,
		PlaceholderCount: services.CountPlaceholders(e.BodyText),
		SampleParams:     e.SampleParams,
	}
}

type catalogKey struct {
	vertical string
	trigger  string
}

// templateCatalog is the static (vertical, trigger) table. Adding a
// vertical means adding rows here; lookup code never changes.
var templateCatalog = map[catalogKey]CatalogEntry{
	{"real-estate", "site_visit_scheduled"}: {
		Vertical: "real-estate", TriggerEvent: "site_visit_scheduled",
		TemplateName: "re_site_visit_scheduled",
		Category:     models.TemplateCategoryUtility,
		BodyText:     "Hi {{1}}, your site visit for {{2}} is confirmed on {{3}} at {{4}}. Our executive will meet you at the property gate.",
		FooterText:   "Reply STOP to opt out",
		Buttons: []models.TemplateButton{
			{Type: models.ButtonTypeQuickReply, Text: "Reschedule"},
			{Type: models.ButtonTypeQuickReply, Text: "Cancel visit"},
		},
		SampleParams: []string{"Asha", "Green Meadows Phase 2", "24 Aug", "11:00 AM"},
	},
	{"real-estate", "price_drop"}: {
		Vertical: "real-estate", TriggerEvent: "price_drop",
		TemplateName: "re_price_drop",
		Category:     models.TemplateCategoryMarketing,
		HeaderText:   "Price update",
		BodyText:     "Good news {{1}}! The price for {{2}} has dropped to {{3}}. Offer valid till {{4}}.",
		Buttons: []models.TemplateButton{
			{Type: models.ButtonTypeURL, Text: "View listing", URL: "https://listings.example.com/{{1}}"},
		},
		SampleParams: []string{"Asha", "Green Meadows Phase 2", "₹82L", "31 Aug"},
	},
	{"tourism", "booking_confirmed"}: {
		Vertical: "tourism", TriggerEvent: "booking_confirmed",
		TemplateName: "tour_booking_confirmed",
		Category:     models.TemplateCategoryUtility,
		BodyText:     "Namaste {{1}}, your {{2}} package is booked for {{3}} travellers departing {{4}}. Booking ID: {{5}}.",
		FooterText:   "Safe travels!",
		SampleParams: []string{"Ravi", "Kerala Backwaters", "2", "12 Sep", "TRV-88412"},
	},
	{"tourism", "itinerary_update"}: {
		Vertical: "tourism", TriggerEvent: "itinerary_update",
		TemplateName: "tour_itinerary_update",
		Category:     models.TemplateCategoryUtility,
		BodyText:     "Hi {{1}}, there is an update to your itinerary for booking {{2}}: {{3}}. Contact your trip advisor for questions.",
		Buttons: []models.TemplateButton{
			{Type: models.ButtonTypePhoneNumber, Text: "Call advisor", PhoneNumber: "+918045551234"},
		},
		SampleParams: []string{"Ravi", "TRV-88412", "Day 2 houseboat check-in moved to 1 PM"},
	},
	{"education", "class_reminder"}: {
		Vertical: "education", TriggerEvent: "class_reminder",
		TemplateName: "edu_class_reminder",
		Category:     models.TemplateCategoryUtility,
		BodyText:     "Hi {{1}}, reminder: your {{2}} class starts at {{3}} today. Join link was shared on your dashboard.",
		SampleParams: []string{"Meera", "Physics batch B", "6:00 PM"},
	},
	{"education", "fee_due"}: {
		Vertical: "education", TriggerEvent: "fee_due",
		TemplateName: "edu_fee_due",
		Category:     models.TemplateCategoryUtility,
		BodyText:     "Dear {{1}}, the fee of {{2}} for {{3}} is due on {{4}}. Kindly pay before the due date to avoid late charges.",
		Buttons: []models.TemplateButton{
			{Type: models.ButtonTypeURL, Text: "Pay now", URL: "https://pay.example.com/{{1}}"},
		},
		SampleParams: []string{"Meera", "₹4,500", "Physics batch B", "30 Aug"},
	},
	{"logistics", "shipment_out_for_delivery"}: {
		Vertical: "logistics", TriggerEvent: "shipment_out_for_delivery",
		TemplateName: "log_out_for_delivery",
		Category:     models.TemplateCategoryUtility,
		BodyText:     "Your package {{1}} is out for delivery and will arrive by {{2}}. Keep {{3}} ready if cash on delivery.",
		SampleParams: []string{"AWB-501223", "7 PM", "₹1,240"},
	},
	{"logistics", "delivery_failed"}: {
		Vertical: "logistics", TriggerEvent: "delivery_failed",
		TemplateName: "log_delivery_failed",
		Category:     models.TemplateCategoryUtility,
		BodyText:     "We could not deliver package {{1}} today: {{2}}. We will retry on {{3}}.",
		Buttons: []models.TemplateButton{
			{Type: models.ButtonTypeQuickReply, Text: "Reschedule"},
			{Type: models.ButtonTypeQuickReply, Text: "Change address"},
		},
		SampleParams: []string{"AWB-501223", "address not reachable", "25 Aug"},
	},
	{"legal", "hearing_reminder"}: {
		Vertical: "legal", TriggerEvent: "hearing_reminder",
		TemplateName: "legal_hearing_reminder",
		Category:     models.TemplateCategoryUtility,
		BodyText:     "Dear {{1}}, your matter {{2}} is listed for hearing on {{3}} at {{4}}. Please carry the originals discussed.",
		SampleParams: []string{"Mr. Sharma", "CS/2024/1182", "28 Aug", "Court Hall 4"},
	},
	{"legal", "document_ready"}: {
		Vertical: "legal", TriggerEvent: "document_ready",
		TemplateName: "legal_document_ready",
		Category:     models.TemplateCategoryUtility,
		BodyText:     "Dear {{1}}, the drafted {{2}} is ready for your review. Please visit the office or reply to schedule a call.",
		SampleParams: []string{"Mr. Sharma", "sale agreement"},
	},
	{"retail", "order_confirmed"}: {
		Vertical: "retail", TriggerEvent: "order_confirmed",
		TemplateName: "retail_order_confirmed",
		Category:     models.TemplateCategoryUtility,
		BodyText:     "Thanks {{1}}! Order {{2}} worth {{3}} is confirmed and will ship by {{4}}.",
		FooterText:   "Reply STOP to opt out",
		SampleParams: []string{"Divya", "ORD-20931", "₹2,499", "26 Aug"},
	},
	{"retail", "back_in_stock"}: {
		Vertical: "retail", TriggerEvent: "back_in_stock",
		TemplateName: "retail_back_in_stock",
		Category:     models.TemplateCategoryMarketing,
		BodyText:     "Hi {{1}}, {{2}} is back in stock! Limited quantity, grab yours before it runs out.",
		Buttons: []models.TemplateButton{
			{Type: models.ButtonTypeURL, Text: "Buy now", URL: "https://shop.example.com/{{1}}"},
		},
		SampleParams: []string{"Divya", "Cotton kurta set - blue"},
	},
}

// GetTemplateByTrigger is a pure lookup over the static catalog.
func GetTemplateByTrigger(vertical, event string) (CatalogEntry, bool) {
	key := catalogKey{
		vertical: strings.ToLower(strings.TrimSpace(vertical)),
		trigger:  strings.ToLower(strings.TrimSpace(event)),
	}
	entry, ok := templateCatalog[key]
	return entry, ok
}

// CatalogEntries returns all catalog entries; used by the bulk template
// registration path.
func CatalogEntries() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(templateCatalog))
	for _, entry := range templateCatalog {
		out = append(out, entry)
	}
	return out
}
