package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatBrokers formats a list of brokers as JSON
func (f *Formatter) FormatBrokers(brokers []BrokerDTO) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(brokers)
}

// FormatBrokersTable writes one aligned row per broker.
func (f *Formatter) FormatBrokersTable(brokers []BrokerDTO) error {
	tw := tabwriter.NewWriter(f.writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tENDPOINT\tCLIENT ID\tHISTORY")
	for _, b := range brokers {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", b.ID, b.Name, b.Endpoint, b.ClientID, len(b.History))
	}
	return tw.Flush()
}

// FormatResult formats any command result as JSON
func (f *Formatter) FormatResult(result any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
