// Package locale carries the active display language. A Context is an
// immutable value: create it once (or per HTTP request) and pass it along.
package locale

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/example/buildco/backend/internal/models"
)

// Language is a supported UI language code.
type Language string

const (
	English Language = "en"
	Arabic  Language = "ar"
)

// Message keys emitted by the maintenance core.
const (
	MsgReferenceRequired  = "reference_required"
	MsgNotFound           = "not_found"
	MsgGenericError       = "generic_error"
	MsgValidationFailed   = "validation_failed"
	MsgInvalidID          = "invalid_id"
	MsgUnauthorized       = "unauthorized"
	MsgInvalidCredentials = "invalid_credentials"
	MsgRateLimited        = "rate_limited"
	MsgImageNotImage      = "image_not_image"
	MsgImageTooLarge      = "image_too_large"
	MsgTooManyImages      = "too_many_images"
	MsgImageMissing       = "image_missing"
	MsgUploadTooLarge     = "upload_too_large"
	MsgSubmitInFlight     = "submit_in_flight"
	MsgStepIncomplete     = "step_incomplete"
	MsgConfirmSubject     = "confirm_subject"
	MsgAdminAlertSubject  = "admin_alert_subject"
	MsgStatusSubject      = "status_subject"
	MsgMailGreeting       = "mail_greeting"
	MsgMailConfirmIntro   = "mail_confirm_intro"
	MsgMailStatusIntro    = "mail_status_intro"
	MsgMailTrackLabel     = "mail_track_label"

	msgFieldRequired = "field_required"
	msgFieldInvalid  = "field_invalid"
)

// Prefixes of the generated keys for field labels, response times and status
// labels.
const (
	fieldPrefix    = "field."
	responsePrefix = "response_time."
	statusPrefix   = "status."
)

var translations = map[Language]map[string]string{
	English: {
		MsgReferenceRequired:  "Please enter a reference number.",
		MsgNotFound:           "No maintenance request was found with this reference number.",
		MsgGenericError:       "Something went wrong. Please try again later.",
		MsgValidationFailed:   "Please correct the highlighted fields.",
		MsgInvalidID:          "Invalid identifier.",
		MsgUnauthorized:       "You must be signed in as an administrator.",
		MsgInvalidCredentials: "Invalid email or password.",
		MsgRateLimited:        "Too many requests. Please wait a moment and try again.",
		MsgImageNotImage:      "%s is not an image.",
		MsgImageTooLarge:      "%s is larger than 5 MB.",
		MsgTooManyImages:      "You can attach at most 5 images.",
		MsgImageMissing:       "No image file was provided.",
		MsgUploadTooLarge:     "The upload is larger than 5 MB.",
		MsgSubmitInFlight:     "Your request is already being submitted.",
		MsgStepIncomplete:     "Please complete the current step first.",
		MsgConfirmSubject:     "Maintenance request received: %s",
		MsgAdminAlertSubject:  "New maintenance request %s (%s)",
		MsgStatusSubject:      "Maintenance request %s is now %s",
		MsgMailGreeting:       "Dear %s,",
		MsgMailConfirmIntro:   "We have received your maintenance request. Your reference number is:",
		MsgMailStatusIntro:    "The status of your maintenance request has been updated:",
		MsgMailTrackLabel:     "Track your request",
		msgFieldRequired:      "%s is required",
		msgFieldInvalid:       "%s is invalid",

		fieldPrefix + "client_name":      "Full name",
		fieldPrefix + "client_phone":     "Phone number",
		fieldPrefix + "client_email":     "Email",
		fieldPrefix + "client_address":   "Address",
		fieldPrefix + "maintenance_type": "Maintenance type",
		fieldPrefix + "priority":         "Priority",
		fieldPrefix + "category":         "Category",
		fieldPrefix + "description":      "Problem description",
		fieldPrefix + "preferred_date":   "Preferred date",
		fieldPrefix + "preferred_time":   "Preferred time",
		fieldPrefix + "contact_person":   "Contact person",
		fieldPrefix + "contact_phone":    "Contact phone",
		fieldPrefix + "status":           "Status",
		fieldPrefix + "estimated_cost":   "Estimated cost",
		fieldPrefix + "actual_cost":      "Actual cost",

		responsePrefix + string(models.PriorityUrgent): "We will respond within 1 hour.",
		responsePrefix + string(models.PriorityHigh):   "We will respond within 4 hours.",
		responsePrefix + string(models.PriorityMedium): "We will respond within 24 hours.",
		responsePrefix + string(models.PriorityLow):    "We will respond within 48 hours.",

		statusPrefix + string(models.StatusPending):    "Pending",
		statusPrefix + string(models.StatusConfirmed):  "Confirmed",
		statusPrefix + string(models.StatusAssigned):   "Assigned",
		statusPrefix + string(models.StatusInProgress): "In progress",
		statusPrefix + string(models.StatusCompleted):  "Completed",
		statusPrefix + string(models.StatusCancelled):  "Cancelled",
	},
	Arabic: {
		MsgReferenceRequired:  "يرجى إدخال الرقم المرجعي.",
		MsgNotFound:           "لم يتم العثور على طلب صيانة بهذا الرقم المرجعي.",
		MsgGenericError:       "حدث خطأ ما. يرجى المحاولة لاحقاً.",
		MsgValidationFailed:   "يرجى تصحيح الحقول المحددة.",
		MsgInvalidID:          "معرف غير صالح.",
		MsgUnauthorized:       "يجب تسجيل الدخول كمسؤول.",
		MsgInvalidCredentials: "البريد الإلكتروني أو كلمة المرور غير صحيحة.",
		MsgRateLimited:        "طلبات كثيرة جداً. يرجى الانتظار قليلاً ثم المحاولة مرة أخرى.",
		MsgImageNotImage:      "%s ليس صورة.",
		MsgImageTooLarge:      "حجم %s أكبر من 5 ميجابايت.",
		MsgTooManyImages:      "يمكنك إرفاق 5 صور كحد أقصى.",
		MsgImageMissing:       "لم يتم إرفاق ملف صورة.",
		MsgUploadTooLarge:     "حجم الملف المرفوع أكبر من 5 ميجابايت.",
		MsgSubmitInFlight:     "جاري إرسال طلبك بالفعل.",
		MsgStepIncomplete:     "يرجى إكمال الخطوة الحالية أولاً.",
		MsgConfirmSubject:     "تم استلام طلب الصيانة: %s",
		MsgAdminAlertSubject:  "طلب صيانة جديد %s (%s)",
		MsgStatusSubject:      "حالة طلب الصيانة %s أصبحت %s",
		MsgMailGreeting:       "مرحباً %s،",
		MsgMailConfirmIntro:   "تم استلام طلب الصيانة الخاص بك. رقمك المرجعي هو:",
		MsgMailStatusIntro:    "تم تحديث حالة طلب الصيانة:",
		MsgMailTrackLabel:     "تتبع طلبك",
		msgFieldRequired:      "%s مطلوب",
		msgFieldInvalid:       "%s غير صالح",

		fieldPrefix + "client_name":      "الاسم الكامل",
		fieldPrefix + "client_phone":     "رقم الهاتف",
		fieldPrefix + "client_email":     "البريد الإلكتروني",
		fieldPrefix + "client_address":   "العنوان",
		fieldPrefix + "maintenance_type": "نوع الصيانة",
		fieldPrefix + "priority":         "الأولوية",
		fieldPrefix + "category":         "الفئة",
		fieldPrefix + "description":      "وصف المشكلة",
		fieldPrefix + "preferred_date":   "التاريخ المفضل",
		fieldPrefix + "preferred_time":   "الوقت المفضل",
		fieldPrefix + "contact_person":   "الشخص المسؤول",
		fieldPrefix + "contact_phone":    "هاتف التواصل",
		fieldPrefix + "status":           "الحالة",
		fieldPrefix + "estimated_cost":   "التكلفة التقديرية",
		fieldPrefix + "actual_cost":      "التكلفة الفعلية",

		responsePrefix + string(models.PriorityUrgent): "سنقوم بالرد خلال ساعة واحدة.",
		responsePrefix + string(models.PriorityHigh):   "سنقوم بالرد خلال 4 ساعات.",
		responsePrefix + string(models.PriorityMedium): "سنقوم بالرد خلال 24 ساعة.",
		responsePrefix + string(models.PriorityLow):    "سنقوم بالرد خلال 48 ساعة.",

		statusPrefix + string(models.StatusPending):    "قيد الانتظار",
		statusPrefix + string(models.StatusConfirmed):  "مؤكد",
		statusPrefix + string(models.StatusAssigned):   "تم التعيين",
		statusPrefix + string(models.StatusInProgress): "قيد التنفيذ",
		statusPrefix + string(models.StatusCompleted):  "مكتمل",
		statusPrefix + string(models.StatusCancelled):  "ملغي",
	},
}

var tags = map[Language]language.Tag{
	English: language.English,
	Arabic:  language.Arabic,
}

// messages is the x/text catalogue built from translations; known records
// which keys it holds so unknown keys fall back to themselves.
var messages, known = buildCatalog()

func buildCatalog() (*catalog.Builder, map[string]struct{}) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	keys := make(map[string]struct{})
	for lang, entries := range translations {
		for key, msg := range entries {
			if err := b.SetString(tags[lang], key, msg); err != nil {
				panic(err)
			}
			keys[key] = struct{}{}
		}
	}
	return b, keys
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Arabic})

// Context is the active language. The zero value is English.
type Context struct {
	lang Language
}

// New returns a Context for lang, falling back to English for unknown codes.
func New(lang Language) Context {
	if _, ok := tags[lang]; !ok {
		lang = English
	}
	return Context{lang: lang}
}

// Parse resolves a language code such as "ar" or "en-GB".
func Parse(code string) (Context, bool) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return New(English), false
	}
	base, _ := tag.Base()
	lang := Language(base.String())
	_, ok := tags[lang]
	return New(lang), ok
}

// Match picks the best supported language for an Accept-Language header.
func Match(acceptLanguage string) Context {
	accepted, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(accepted) == 0 {
		return New(English)
	}
	tag, _, _ := matcher.Match(accepted...)
	base, _ := tag.Base()
	return New(Language(base.String()))
}

// Language is the active language code.
func (c Context) Language() Language {
	if c.lang == "" {
		return English
	}
	return c.lang
}

// WithLanguage returns a copy switched to lang.
func (c Context) WithLanguage(lang Language) Context { return New(lang) }

// Dir is the text direction for HTML rendering.
func (c Context) Dir() string {
	if c.Language() == Arabic {
		return "rtl"
	}
	return "ltr"
}

func (c Context) printer() *message.Printer {
	return message.NewPrinter(tags[c.Language()], message.Catalog(messages))
}

func (c Context) lookup(key string, args ...any) (string, bool) {
	if _, ok := known[key]; !ok {
		return "", false
	}
	return c.printer().Sprintf(key, args...), true
}

// T looks up a message and formats args into it. Unknown keys are returned
// as is.
func (c Context) T(key string, args ...any) string {
	if msg, ok := c.lookup(key, args...); ok {
		return msg
	}
	return key
}

// FieldLabel returns the human label of a form field.
func (c Context) FieldLabel(field string) string {
	if l, ok := c.lookup(fieldPrefix + field); ok {
		return l
	}
	return field
}

// FieldMessage renders a validation error for display.
func (c Context) FieldMessage(fe models.FieldError) string {
	key := msgFieldRequired
	if fe.Rule == models.RuleInvalid {
		key = msgFieldInvalid
	}
	return c.T(key, c.FieldLabel(fe.Field))
}

// FieldMessages renders every error in order.
func (c Context) FieldMessages(errs []models.FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, fe := range errs {
		out = append(out, c.FieldMessage(fe))
	}
	return out
}

// ResponseTime is the expected first-response time for a priority. Unknown
// priorities return an empty string.
func (c Context) ResponseTime(p models.Priority) string {
	msg, _ := c.lookup(responsePrefix + string(p))
	return msg
}

// StatusLabel is the display name of a request status.
func (c Context) StatusLabel(s models.RequestStatus) string {
	if l, ok := c.lookup(statusPrefix + string(s)); ok {
		return l
	}
	return string(s)
}
