package etl

// ── Targets ────────────────────────────────────────────────
// The schema registry: one descriptor per import target.
// Per-target behavior is carried entirely by descriptor fields;
// there is a single generic pipeline.

// Target describes how rows of one import target map to documents.
type Target struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Collection  string `json:"collection"`

	// IDField names a column used verbatim as the document id.
	IDField string `json:"idField,omitempty"`
	// CompositeIDFields, when set, wins over IDField: the trimmed values
	// are joined with "_" in list order.
	CompositeIDFields []string `json:"compositeIdFields,omitempty"`

	NumericFields []string `json:"numericFields"`
	Hint          string   `json:"hint"`
}

// IsNumeric reports whether column must be coerced to a number.
func (t Target) IsNumeric(column string) bool {
	for _, f := range t.NumericFields {
		if f == column {
			return true
		}
	}
	return false
}

// clone returns a copy that shares no slices with the registry.
func (t Target) clone() Target {
	t.CompositeIDFields = append([]string(nil), t.CompositeIDFields...)
	t.NumericFields = append([]string(nil), t.NumericFields...)
	return t
}

var targets = []Target{
	{
		Key:           "inventory",
		Label:         "Inventory",
		Description:   "Product stock levels & warehouse locations",
		Collection:    "inventory",
		IDField:       "product_id",
		NumericFields: []string{"current_stock", "reserved_stock"},
		Hint:          "product_id, current_stock, reserved_stock, warehouse_location, last_updated, inventory_type",
	},
	{
		Key:           "logistics_vehicles",
		Label:         "Fleet Vehicles",
		Description:   "Trucks & vans with positions and capacity",
		Collection:    "trucks",
		IDField:       "vehicle_id",
		NumericFields: []string{"capacity_qty", "lat", "lng"},
		Hint:          "vehicle_id, type, capacity_qty, delivery_mode, lat, lng",
	},
	{
		Key:           "logistics_customers",
		Label:         "Customers",
		Description:   "Customer locations and product demand",
		Collection:    "logistics_customers",
		IDField:       "customer_id",
		NumericFields: []string{"lat", "lng", "demand_qty", "pin", "cost"},
		Hint:          "customer_id, name, lat, lng, demand_qty, product_id, pin, cost",
	},
	{
		Key:           "warehouse",
		Label:         "Warehouses",
		Description:   "Warehouse capacity and geo-coordinates",
		Collection:    "warehouses",
		IDField:       "warehouse_id",
		NumericFields: []string{"max_capacity", "current_occupied", "lat", "lng"},
		Hint:          "warehouse_id, name, max_capacity, current_occupied, lat, lng",
	},
	{
		Key:               "bom",
		Label:             "Bill of Materials",
		Description:       "Finished-product → component relationships",
		Collection:        "bom",
		CompositeIDFields: []string{"finished_product_id", "component_product_id"},
		NumericFields:     []string{"quantity_required"},
		Hint:              "finished_product_id, component_product_id, quantity_required",
	},
	{
		Key:           "material_planning",
		Label:         "Material Planning",
		Description:   "EOQ, safety stock and lead times per material",
		Collection:    "material_planning",
		IDField:       "material_id",
		NumericFields: []string{"average_daily_demand", "lead_time_days", "safety_stock", "economic_order_quantity"},
		Hint:          "material_id, average_daily_demand, lead_time_days, safety_stock, policy_type, economic_order_quantity",
	},
	{
		Key:               "supplier_product",
		Label:             "Supplier Products",
		Description:       "Pricing, lead times and quality scores by supplier",
		Collection:        "supplier_product",
		CompositeIDFields: []string{"supplier_id", "product_id"},
		NumericFields:     []string{"cost_per_unit", "lead_time_days", "minimum_order_quantity", "transport_cost", "quality_score"},
		Hint:              "supplier_id, product_id, cost_per_unit, lead_time_days, minimum_order_quantity, transport_cost, quality_score",
	},
	{
		Key:               "supplier_performance",
		Label:             "Supplier Performance",
		Description:       "On-time rates, defect rates and delay metrics",
		Collection:        "supplier_performance",
		CompositeIDFields: []string{"supplier_id", "product_id"},
		NumericFields:     []string{"on_time_delivery_rate", "average_delay_days", "defect_rate"},
		Hint:              "supplier_id, product_id, on_time_delivery_rate, average_delay_days, defect_rate, last_updated",
	},
	{
		Key:               "supplier_order_stages",
		Label:             "Supplier Order Stages",
		Description:       "Pipeline stages, timings and throughput per supplier",
		Collection:        "supplier_order_stages",
		CompositeIDFields: []string{"supplier_id", "stage_order"},
		NumericFields:     []string{"stage_order", "avg_time_hours", "max_output_per_day"},
		Hint:              "supplier_id, stage_name, stage_order, avg_time_hours, max_output_per_day, description",
	},
}

// LookupTarget returns the descriptor registered under key.
func LookupTarget(key string) (Target, error) {
	for _, t := range targets {
		if t.Key == key {
			return t.clone(), nil
		}
	}
	return Target{}, &ConfigurationError{Target: key}
}

// Targets returns every registered descriptor in registry order.
func Targets() []Target {
	out := make([]Target, len(targets))
	for i, t := range targets {
		out[i] = t.clone()
	}
	return out
}
