package imports

// TemplateFileName is the download name of the import template.
const TemplateFileName = "leads_import_template.csv"

var templateHeaders = "Company Name,Contact Name,Contact Email,City,Enquiry Type,Project Description,Enquiry Status,Project Status,Type"

var templateSample = `Acme Industries,Jane Doe,jane.doe@acme.example,Pune,Website,"Warehouse automation, phase 1",New,Open,PROPOSAL`

// Template returns a sample CSV with the expected headers and one example row.
func Template() []byte {
	return []byte(templateHeaders + "\n" + templateSample + "\n")
}
