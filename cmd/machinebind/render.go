package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/slashdevops/machinebind"
	"github.com/slashdevops/machinebind/archive"
	"github.com/slashdevops/machinebind/container"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("42"))

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")).
			Italic(true)
)

const absent = "(absent)"

func printField(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %v\n", labelStyle.Render(fmt.Sprintf("%-19s", label+":")), value)
}

func printIdentity(w io.Writer, id *machinebind.Identity) {
	machineID, ok := id.MachineID()
	if !ok {
		machineID = absent
	}
	serial, ok := id.MotherboardSerial()
	if !ok {
		serial = absent
	}

	printField(w, "Version", id.Version())
	printField(w, "Digest", id.Digest())
	printField(w, "Username", id.Username())
	printField(w, "Network addresses", strings.Join(id.NetworkAddresses(), ", "))
	printField(w, "Machine ID", machineID)
	printField(w, "Storage", strings.Join(id.StorageIDs(), ", "))
	printField(w, "CPU", id.CPUDescription())
	printField(w, "Board serial", serial)
}

func printDiagnostics(w io.Writer, diag *machinebind.DiagnosticInfo) {
	if diag == nil {
		fmt.Fprintln(w, hintStyle.Render("no diagnostic information available"))
		return
	}

	fmt.Fprintln(w, titleStyle.Render("Diagnostics"))
	if len(diag.Collected) > 0 {
		printField(w, "Collected", strings.Join(diag.Collected, ", "))
	}
	for _, component := range slices.Sorted(maps.Keys(diag.Errors)) {
		printField(w, component, failStyle.Render(diag.Errors[component].Error()))
	}
}

func formatDiagnostics(diag *machinebind.DiagnosticInfo) map[string]any {
	if diag == nil {
		return nil
	}

	result := map[string]any{
		"collected": diag.Collected,
	}

	if len(diag.Errors) > 0 {
		errs := make(map[string]string, len(diag.Errors))
		for component, err := range diag.Errors {
			errs[component] = err.Error()
		}
		result["errors"] = errs
	}

	return result
}

func identityJSON(id *machinebind.Identity) map[string]any {
	return map[string]any{
		"version":     id.Version(),
		"digest":      id.Digest(),
		"observables": id.Observables(),
	}
}

func printListing(w io.Writer, l *archive.Listing) {
	fmt.Fprintln(w, titleStyle.Render("Contents"))
	if l == nil {
		fmt.Fprintln(w, hintStyle.Render("  encrypted; pass --passphrase-file to list"))
		return
	}
	for _, p := range l.Paths() {
		if data, ok := l.Files[p]; ok {
			fmt.Fprintf(w, "  %s %s\n", p, hintStyle.Render(fmt.Sprintf("(%d bytes)", len(data))))
		} else {
			fmt.Fprintf(w, "  %s/\n", p)
		}
	}
}

func printHeader(w io.Writer, h container.Header) {
	fmt.Fprintln(w, titleStyle.Render("Header"))
	printField(w, "Magic", container.Magic)
	printField(w, "Version", h.Version)
	printField(w, "Body length", h.BodyLength)
}

func printResult(w io.Writer, ok bool, okMsg, failMsg string) {
	if ok {
		fmt.Fprintln(w, okStyle.Render("✓ ")+okMsg)
	} else {
		fmt.Fprintln(w, failStyle.Render("✗ ")+failMsg)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
