package screens

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/format"
	"github.com/johnwards/dealerhub/internal/view"
)

// Unresolved foreign keys render as one of these.
const (
	NotAvailable = format.NotAvailable
	UnknownUser  = "Unknown user"
)

var (
	dealersRef   = view.Reference{Name: "dealers", Collection: "dealers", Field: "name"}
	customersRef = view.Reference{Name: "customers", Collection: "customers", Field: "fullName"}
	modelsRef    = view.Reference{Name: "models", Collection: "vehicle-models", Field: "name"}
	variantsRef  = view.Reference{Name: "variants", Collection: "vehicle-variants", Field: "name"}
	ordersRef    = view.Reference{Name: "orders", Collection: "sales-orders", Field: "id"}
)

// All returns every screen in menu order.
func All() []*view.Config {
	return []*view.Config{
		Dealers(),
		DealerContracts(),
		Users(),
		Customers(),
		VehicleModels(),
		VehicleVariants(),
		VehicleStock(),
		Quotations(),
		SalesOrders(),
		Payments(),
		Feedback(),
		AuditLogs(),
	}
}

// ByName returns the screen named name.
func ByName(name string) (*view.Config, bool) {
	for _, c := range All() {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func text(name, label string, required bool) view.FormField {
	return view.FormField{Name: name, Label: label, Type: view.InputText, Required: required}
}

func number(name, label string, required bool, minimum float64) view.FormField {
	return view.FormField{Name: name, Label: label, Type: view.InputNumber, Required: required, Min: view.Bound(minimum)}
}

func date(name, label string, required bool) view.FormField {
	return view.FormField{Name: name, Label: label, Type: view.InputDate, Required: required}
}

func choice(name, label string, required bool, options ...string) view.FormField {
	return view.FormField{Name: name, Label: label, Type: view.InputSelect, Required: required, Options: options}
}

func ref(name, label string, required bool, r view.Reference) view.FormField {
	return view.FormField{Name: name, Label: label, Type: view.InputSelect, Required: required, OptionsRef: r.Name}
}

func immutable(f view.FormField) view.FormField {
	f.Immutable = true
	return f
}

func after(f view.FormField, field string) view.FormField {
	f.After = field
	return f
}

func upTo(f view.FormField, maximum float64) view.FormField {
	f.Max = view.Bound(maximum)
	return f
}

func refFilter(key, label string, r view.Reference) view.FilterDef {
	return view.FilterDef{Key: key, Label: label, OptionsRef: r.Name}
}

// orderColumn shows a linked sales order as "#id".
func orderColumn(key, label string) view.Column {
	return view.Column{Key: key, Label: label, Value: func(r domain.Record, env view.Env) string {
		name := env.Refs.Lookup(ordersRef.Name, r.String(key), "")
		if name == "" {
			return NotAvailable
		}
		return "#" + name
	}}
}

func transition(name, label, to string, from ...string) view.Action {
	return view.Action{Name: name, Label: label, To: to, From: from}
}

// Dealers lists the dealer network.
func Dealers() *view.Config {
	return &view.Config{
		Name: "dealers", Title: "Dealers", Singular: "Dealer", Collection: "dealers",
		Columns: []view.Column{
			view.Text("code", "Code"),
			view.Text("name", "Name"),
			view.Text("region", "Region"),
			view.Text("phone", "Phone"),
			view.Text("email", "Email"),
			view.StatusColumn("Status"),
		},
		Filters: []view.FilterDef{
			view.StatusFilter("Status", "Active", "Inactive", "Suspended"),
			view.FieldFilter("region", "Region", false),
		},
		DateField: domain.KeyCreatedAt,
		Badge:     Badge,
		Form: []view.FormField{
			text("name", "Name", true),
			immutable(text("code", "Code", true)),
			text("address", "Address", false),
			text("phone", "Phone", false),
			text("email", "Email", false),
			text("region", "Region", false),
			choice("status", "Status", false, "Active", "Inactive", "Suspended"),
		},
		Defaults: map[string]any{"status": "Active"},
		Actions: []view.Action{
			transition("suspend", "Suspend", "Suspended", "Active", "Inactive"),
			transition("activate", "Activate", "Active", "Inactive", "Suspended"),
		},
	}
}

// DealerContracts lists contracts with a status derived from their dates.
func DealerContracts() *view.Config {
	return &view.Config{
		Name: "dealer-contracts", Title: "Dealer Contracts", Singular: "Contract", Collection: "dealer-contracts",
		References: []view.Reference{dealersRef},
		Columns: []view.Column{
			view.Text("contractNumber", "Contract Number"),
			view.Ref("dealerId", "Dealer", dealersRef.Name, NotAvailable),
			view.Date("startDate", "Start Date"),
			view.Date("endDate", "End Date"),
			view.Number("salesTarget", "Sales Target"),
			view.Percent("commissionRate", "Commission"),
			view.StatusColumn("Status"),
		},
		Filters: []view.FilterDef{
			view.StatusFilter("Status", ContractActive, ContractPending, ContractExpired),
			refFilter("dealerId", "Dealer", dealersRef),
		},
		DateField: "startDate",
		Status:    contractStatus,
		Badge:     Badge,
		Form: []view.FormField{
			ref("dealerId", "Dealer", true, dealersRef),
			text("contractNumber", "Contract Number", true),
			date("startDate", "Start Date", true),
			after(date("endDate", "End Date", true), "startDate"),
			number("salesTarget", "Sales Target", false, 0),
			upTo(number("commissionRate", "Commission Rate", false, 0), 100),
			{Name: "terms", Label: "Terms", Type: view.InputTextArea},
		},
		UpdateMethod: http.MethodPut,
	}
}

// Users lists console users.
func Users() *view.Config {
	roles := []string{"Admin", "EVMStaff", "DealerManager", "DealerStaff"}
	return &view.Config{
		Name: "users", Title: "Users", Singular: "User", Collection: "users",
		References: []view.Reference{dealersRef},
		Columns: []view.Column{
			view.Text("fullName", "Full Name"),
			view.Text("email", "Email"),
			view.Text("role", "Role"),
			view.Ref("dealerId", "Dealer", dealersRef.Name, NotAvailable),
			view.StatusColumn("Status"),
		},
		Filters: []view.FilterDef{
			{Key: "role", Label: "Role", Multi: true, Options: roles},
			view.StatusFilter("Status", "Active", "Inactive"),
		},
		DateField: domain.KeyCreatedAt,
		Badge:     Badge,
		Form: []view.FormField{
			text("fullName", "Full Name", true),
			text("email", "Email", true),
			choice("role", "Role", true, roles...),
			ref("dealerId", "Dealer", false, dealersRef),
			choice("status", "Status", false, "Active", "Inactive"),
		},
		Defaults: map[string]any{"status": "Active", "role": "DealerStaff"},
		Actions: []view.Action{
			transition("deactivate", "Deactivate", "Inactive", "Active"),
			transition("activate", "Activate", "Active", "Inactive"),
		},
	}
}

// Customers lists dealer customers.
func Customers() *view.Config {
	return &view.Config{
		Name: "customers", Title: "Customers", Singular: "Customer", Collection: "customers",
		References: []view.Reference{dealersRef},
		Columns: []view.Column{
			view.Text("fullName", "Full Name"),
			view.Text("phone", "Phone"),
			view.Text("email", "Email"),
			view.Ref("dealerId", "Dealer", dealersRef.Name, NotAvailable),
			view.Date(domain.KeyCreatedAt, "Created"),
		},
		Filters:   []view.FilterDef{refFilter("dealerId", "Dealer", dealersRef)},
		DateField: domain.KeyCreatedAt,
		Form: []view.FormField{
			text("fullName", "Full Name", true),
			text("phone", "Phone", true),
			text("email", "Email", false),
			text("address", "Address", false),
			ref("dealerId", "Dealer", false, dealersRef),
		},
	}
}

// VehicleModels lists the model catalogue.
func VehicleModels() *view.Config {
	return &view.Config{
		Name: "vehicle-models", Title: "Vehicle Models", Singular: "Vehicle model", Collection: "vehicle-models",
		Columns: []view.Column{
			view.Text("name", "Name"),
			view.Text("brand", "Brand"),
			view.Text("segment", "Segment"),
			view.StatusColumn("Status"),
		},
		Filters: []view.FilterDef{
			view.StatusFilter("Status", "Active", "Discontinued"),
			view.FieldFilter("brand", "Brand", false),
		},
		Badge: Badge,
		Form: []view.FormField{
			text("name", "Name", true),
			text("brand", "Brand", true),
			text("segment", "Segment", false),
			{Name: "description", Label: "Description", Type: view.InputTextArea},
			choice("status", "Status", false, "Active", "Discontinued"),
		},
		Defaults:    map[string]any{"status": "Active"},
		FetchDetail: true,
		Actions:     []view.Action{transition("discontinue", "Discontinue", "Discontinued", "Active")},
	}
}

// VehicleVariants lists the variants of each model.
func VehicleVariants() *view.Config {
	return &view.Config{
		Name: "vehicle-variants", Title: "Vehicle Variants", Singular: "Vehicle variant", Collection: "vehicle-variants",
		References: []view.Reference{modelsRef},
		Columns: []view.Column{
			view.Ref("modelId", "Model", modelsRef.Name, NotAvailable),
			view.Text("name", "Name"),
			view.Text("color", "Color"),
			view.Number("batteryCapacity", "Battery (kWh)"),
			view.Number("rangeKm", "Range (km)"),
			view.Money("price", "Price"),
		},
		Filters: []view.FilterDef{
			refFilter("modelId", "Model", modelsRef),
			view.FieldFilter("color", "Color", true),
		},
		Form: []view.FormField{
			ref("modelId", "Model", true, modelsRef),
			text("name", "Name", true),
			text("color", "Color", false),
			number("batteryCapacity", "Battery Capacity (kWh)", false, 0),
			number("rangeKm", "Range (km)", false, 0),
			number("price", "Price", true, 0),
		},
		FetchDetail: true,
	}
}

// VehicleStock lists individual vehicles held by dealers.
func VehicleStock() *view.Config {
	statuses := []string{"Available", "Reserved", "Sold", "InTransit"}
	return &view.Config{
		Name: "vehicle-stock", Title: "Vehicle Stock", Singular: "Vehicle", Collection: "vehicle-stock",
		References: []view.Reference{variantsRef, dealersRef},
		Columns: []view.Column{
			view.Text("vin", "VIN"),
			view.Ref("variantId", "Variant", variantsRef.Name, NotAvailable),
			view.Ref("dealerId", "Dealer", dealersRef.Name, NotAvailable),
			view.Date("arrivedAt", "Arrived"),
			view.StatusColumn("Status"),
		},
		Filters: []view.FilterDef{
			view.StatusFilter("Status", statuses...),
			refFilter("dealerId", "Dealer", dealersRef),
		},
		DateField: "arrivedAt",
		Badge:     Badge,
		Form: []view.FormField{
			ref("variantId", "Variant", true, variantsRef),
			ref("dealerId", "Dealer", true, dealersRef),
			immutable(text("vin", "VIN", true)),
			date("arrivedAt", "Arrived At", false),
			choice("status", "Status", false, statuses...),
		},
		Defaults: map[string]any{"status": "InTransit"},
		Actions: []view.Action{
			transition("receive", "Mark Arrived", "Available", "InTransit"),
			transition("reserve", "Reserve", "Reserved", "Available"),
			transition("mark-sold", "Mark Sold", "Sold", "Available", "Reserved"),
		},
	}
}

// Quotations lists price quotations sent to customers.
func Quotations() *view.Config {
	return &view.Config{
		Name: "quotations", Title: "Quotations", Singular: "Quotation", Collection: "quotations",
		References: []view.Reference{dealersRef, customersRef, variantsRef},
		Columns: []view.Column{
			view.ID("ID"),
			view.Ref("customerId", "Customer", customersRef.Name, NotAvailable),
			view.Ref("dealerId", "Dealer", dealersRef.Name, NotAvailable),
			view.Ref("variantId", "Variant", variantsRef.Name, NotAvailable),
			view.Number("quantity", "Qty"),
			view.Money("totalAmount", "Total"),
			view.Date("validUntil", "Valid Until"),
			view.StatusColumn("Status"),
		},
		Filters: []view.FilterDef{
			view.StatusFilter("Status", "Draft", "Sent", "Accepted", "Rejected", "Expired"),
			refFilter("dealerId", "Dealer", dealersRef),
		},
		DateField: domain.KeyCreatedAt,
		Badge:     Badge,
		Form: []view.FormField{
			ref("dealerId", "Dealer", true, dealersRef),
			ref("customerId", "Customer", true, customersRef),
			ref("variantId", "Variant", true, variantsRef),
			number("quantity", "Quantity", true, 1),
			number("unitPrice", "Unit Price", true, 0),
			number("discount", "Discount", false, 0),
			date("validUntil", "Valid Until", false),
		},
		Defaults:    map[string]any{"quantity": 1, "status": "Draft"},
		Validate:    validateQuotation,
		Derive:      deriveQuotation,
		FetchDetail: true,
		Actions: []view.Action{
			transition("send", "Send", "Sent", "Draft"),
			transition("accept", "Accept", "Accepted", "Sent"),
			transition("reject", "Reject", "Rejected", "Sent"),
		},
	}
}

func quotationTotals(values map[string]any) (gross, discount decimal.Decimal) {
	qty, _ := decimal.NewFromString(domain.Stringify(values["quantity"]))
	price, _ := decimal.NewFromString(domain.Stringify(values["unitPrice"]))
	discount, _ = decimal.NewFromString(domain.Stringify(values["discount"]))
	return qty.Mul(price), discount
}

func validateQuotation(values map[string]any) error {
	gross, discount := quotationTotals(values)
	if discount.GreaterThan(gross) {
		return &view.ValidationError{Field: "discount", Message: "Discount cannot exceed the quotation value"}
	}
	return nil
}

// deriveQuotation fills in the total after discount.
func deriveQuotation(values map[string]any) map[string]any {
	gross, discount := quotationTotals(values)
	return map[string]any{"totalAmount": json.Number(gross.Sub(discount).String())}
}

// SalesOrders lists orders. The dealer of an order cannot change.
func SalesOrders() *view.Config {
	return &view.Config{
		Name: "sales-orders", Title: "Sales Orders", Singular: "Order", Collection: "sales-orders",
		References: []view.Reference{dealersRef, customersRef, variantsRef},
		Columns: []view.Column{
			view.ID("Order"),
			view.Ref("dealerId", "Dealer", dealersRef.Name, NotAvailable),
			view.Ref("customerId", "Customer", customersRef.Name, NotAvailable),
			view.Ref("variantId", "Variant", variantsRef.Name, NotAvailable),
			view.Number("quantity", "Qty"),
			view.Money("totalAmount", "Total"),
			view.Date("orderDate", "Order Date"),
			view.Date("deliveryDate", "Delivery Date"),
			view.StatusColumn("Status"),
		},
		Filters: []view.FilterDef{
			view.StatusFilter("Status", "Pending", "Confirmed", "Delivered", "Cancelled"),
			refFilter("dealerId", "Dealer", dealersRef),
		},
		DateField: "orderDate",
		Badge:     Badge,
		Form: []view.FormField{
			immutable(ref("dealerId", "Dealer", true, dealersRef)),
			ref("customerId", "Customer", true, customersRef),
			ref("variantId", "Variant", true, variantsRef),
			number("quantity", "Quantity", true, 1),
			number("totalAmount", "Total Amount", true, 0),
			date("orderDate", "Order Date", true),
			after(date("deliveryDate", "Delivery Date", false), "orderDate"),
		},
		Defaults: map[string]any{"quantity": 1, "status": "Pending"},
		Actions: []view.Action{
			transition("confirm", "Confirm", "Confirmed", "Pending"),
			{
				Name: "mark-delivered", Label: "Mark Delivered", To: "Delivered", From: []string{"Confirmed"},
				Set: func(now time.Time) map[string]any {
					return map[string]any{"deliveryDate": now.In(format.Location).Format(time.DateOnly)}
				},
			},
			transition("cancel", "Cancel", "Cancelled", "Pending", "Confirmed"),
		},
	}
}

// Payments lists payments against orders. Only pending payments can be
// marked paid.
func Payments() *view.Config {
	return &view.Config{
		Name: "payments", Title: "Payments", Singular: "Payment", Collection: "payments",
		References: []view.Reference{dealersRef, ordersRef},
		Columns: []view.Column{
			view.ID("ID"),
			view.Ref("dealerId", "Dealer", dealersRef.Name, NotAvailable),
			orderColumn("salesOrderId", "Order"),
			view.Money("amount", "Amount"),
			view.Text("method", "Method"),
			view.DateTime("paidAt", "Paid At"),
			view.StatusColumn("Status"),
		},
		Filters: []view.FilterDef{
			view.StatusFilter("Status", "Pending", "Completed", "Failed", "Cancelled"),
			{Key: "method", Label: "Method", Multi: true, Options: []string{"Cash", "BankTransfer", "Card", "Installment"}},
		},
		DateField: domain.KeyCreatedAt,
		Badge:     Badge,
		Form: []view.FormField{
			ref("dealerId", "Dealer", true, dealersRef),
			ref("salesOrderId", "Sales Order", false, ordersRef),
			number("amount", "Amount", true, 1),
			choice("method", "Method", true, "Cash", "BankTransfer", "Card", "Installment"),
		},
		Defaults: map[string]any{"method": "BankTransfer", "status": "Pending"},
		Actions: []view.Action{
			{
				Name: "mark-paid", Label: "Mark Paid", To: "Completed", From: []string{"Pending"},
				Set: func(now time.Time) map[string]any {
					return map[string]any{"paidAt": now.UTC().Format(time.RFC3339)}
				},
			},
			transition("cancel", "Cancel", "Cancelled", "Pending"),
		},
	}
}

// Feedback lists customer feedback tickets.
func Feedback() *view.Config {
	return &view.Config{
		Name: "feedback", Title: "Feedback", Singular: "Feedback", Collection: "feedback",
		References: []view.Reference{dealersRef, customersRef},
		Columns: []view.Column{
			view.Text("subject", "Subject"),
			view.Ref("customerId", "Customer", customersRef.Name, NotAvailable),
			view.Ref("dealerId", "Dealer", dealersRef.Name, NotAvailable),
			view.Number("rating", "Rating"),
			view.Date(domain.KeyCreatedAt, "Received"),
			view.StatusColumn("Status"),
		},
		Filters: []view.FilterDef{
			view.StatusFilter("Status", "New", "InProgress", "Resolved", "Closed"),
			view.FieldFilter("rating", "Rating", true),
		},
		DateField: domain.KeyCreatedAt,
		Badge:     Badge,
		Form: []view.FormField{
			ref("customerId", "Customer", false, customersRef),
			ref("dealerId", "Dealer", false, dealersRef),
			text("subject", "Subject", true),
			{Name: "content", Label: "Content", Type: view.InputTextArea},
			upTo(number("rating", "Rating", false, 1), 5),
		},
		Defaults: map[string]any{"status": "New"},
		Actions: []view.Action{
			transition("start", "Start Handling", "InProgress", "New"),
			transition("resolve", "Resolve", "Resolved", "New", "InProgress"),
			transition("close", "Close", "Closed", "Resolved"),
		},
	}
}

// AuditLogs lists the read-only audit trail. User names are resolved one id
// at a time; csv, excel and pdf exports come from the server.
func AuditLogs() *view.Config {
	return &view.Config{
		Name: "audit-logs", Title: "Audit Logs", Singular: "Audit log", Collection: "audit-logs",
		Lookups: []view.LookupRef{{
			Name: "users", Collection: "users", Key: "userId", Field: "fullName", Placeholder: UnknownUser,
		}},
		Columns: []view.Column{
			view.DateTime(domain.KeyCreatedAt, "Time"),
			view.Ref("userId", "User", "users", UnknownUser),
			view.Text("action", "Action"),
			view.Text("entityType", "Entity"),
			view.Text("entityId", "Entity ID"),
			view.Text("details", "Details"),
		},
		Filters: []view.FilterDef{
			{Key: "action", Label: "Action", Multi: true, Options: []string{"CREATE", "UPDATE", "DELETE", "EXPORT"}},
			{Key: "userId", Label: "User", OptionsRef: "users"},
		},
		DateField:    domain.KeyCreatedAt,
		ReadOnly:     true,
		ServerExport: "audit-logs/export",
	}
}
