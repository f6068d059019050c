package wizard

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OperationTemplate is one predefined task within a production stage.
type OperationTemplate struct {
	Name         string `json:"name"`
	Order        int    `json:"order"`
	Description  string `json:"description"`
	IsOutsourced bool   `json:"is_outsourced"`
}

var stageTitle = cases.Title(language.English)

// CanonicalStageName trims and title-cases a free-text stage name so
// catalog lookups and created stage rows agree on one spelling.
func CanonicalStageName(name string) string {
	return stageTitle.String(strings.TrimSpace(strings.ToLower(name)))
}

var stageCatalog = map[string][]OperationTemplate{
	"cutting": {
		{Name: "Fabric Inspection", Order: 1, Description: "Check fabric for defects before layering"},
		{Name: "Marker Layout", Order: 2, Description: "Lay markers per size ratio"},
		{Name: "Cutting", Order: 3, Description: "Cut fabric panels along markers"},
		{Name: "Bundling", Order: 4, Description: "Bundle and ticket cut panels"},
	},
	"stitching": {
		{Name: "Line Loading", Order: 1, Description: "Issue bundles to the stitching line"},
		{Name: "Stitching", Order: 2, Description: "Assemble panels per spec sheet"},
		{Name: "Inline Inspection", Order: 3, Description: "Inspect seams during assembly"},
	},
	"finishing": {
		{Name: "Thread Trimming", Order: 1, Description: "Trim loose threads"},
		{Name: "Pressing", Order: 2, Description: "Press finished pieces"},
		{Name: "Final Inspection", Order: 3, Description: "Full visual and measurement check"},
	},
	"packing": {
		{Name: "Folding", Order: 1, Description: "Fold per buyer presentation spec"},
		{Name: "Tagging", Order: 2, Description: "Attach hang tags and barcodes"},
		{Name: "Packing", Order: 3, Description: "Pack into polybags and cartons"},
	},
}

var embroideryInHouse = []OperationTemplate{
	{Name: "Frame Setup", Order: 1, Description: "Hoop panels and load design file"},
	{Name: "Embroidery Run", Order: 2, Description: "Run embroidery heads"},
	{Name: "Backing Removal", Order: 3, Description: "Remove stabilizer backing and trim"},
}

var printingInHouse = []OperationTemplate{
	{Name: "Screen Preparation", Order: 1, Description: "Prepare and register screens"},
	{Name: "Printing Run", Order: 2, Description: "Print panels per artwork"},
	{Name: "Curing", Order: 3, Description: "Cure prints in the dryer"},
}

var customizationOutsourced = []OperationTemplate{
	{Name: "Prepare Outward Challan", Order: 1, Description: "Prepare dispatch challan for job work", IsOutsourced: true},
	{Name: "Dispatch To Vendor", Order: 2, Description: "Send goods to the job-work vendor", IsOutsourced: true},
	{Name: "Receive From Vendor", Order: 3, Description: "Receive processed goods back", IsOutsourced: true},
	{Name: "Post-Receipt Quality Check", Order: 4, Description: "Inspect returned goods against criteria", IsOutsourced: true},
}

// TemplateFor resolves the operation list for a stage. Stage names
// containing "embroidery" or "printing" branch on the outsourcing flag;
// unknown names resolve to an empty list because custom stages are
// allowed to carry no predefined operations.
func TemplateFor(stageName string, outsourced bool) []OperationTemplate {
	key := strings.ToLower(strings.TrimSpace(stageName))
	switch {
	case strings.Contains(key, "embroidery"):
		if outsourced {
			return cloneTemplates(customizationOutsourced)
		}
		return cloneTemplates(embroideryInHouse)
	case strings.Contains(key, "printing"):
		if outsourced {
			return cloneTemplates(customizationOutsourced)
		}
		return cloneTemplates(printingInHouse)
	}
	if tpl, ok := stageCatalog[key]; ok {
		return cloneTemplates(tpl)
	}
	return nil
}

func cloneTemplates(in []OperationTemplate) []OperationTemplate {
	out := make([]OperationTemplate, len(in))
	copy(out, in)
	return out
}
