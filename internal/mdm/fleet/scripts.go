package fleet

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/uuid"
)

// Platform is a device operating system family
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWindows Platform = "windows"
)

// Platforms lists the platforms a setup script exists for
var Platforms = []Platform{PlatformMacOS, PlatformLinux, PlatformWindows}

// ParsePlatform accepts the platform names used by browsers and agents
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "macos", "mac", "darwin":
		return PlatformMacOS, true
	case "linux", "ubuntu", "debian":
		return PlatformLinux, true
	case "windows", "win", "win32":
		return PlatformWindows, true
	}
	return "", false
}

// LabelName is the label grouping one organization's devices
func LabelName(orgID uuid.UUID) string {
	return "comp-org-" + orgID.String()
}

// MarkerPath is where the setup script writes the organization marker
func MarkerPath(platform Platform, orgID uuid.UUID) string {
	switch platform {
	case PlatformWindows:
		return `C:\ProgramData\CompAI\Fleet\` + orgID.String()
	case PlatformLinux:
		return "/etc/compai/fleet/" + orgID.String()
	default:
		return "/Library/Application Support/CompAI/Fleet/" + orgID.String()
	}
}

// LabelQuery matches hosts carrying the organization marker on any platform
func LabelQuery(orgID uuid.UUID) string {
	paths := make([]string, 0, len(Platforms))
	for _, p := range Platforms {
		paths = append(paths, "'"+strings.ReplaceAll(MarkerPath(p, orgID), "'", "''")+"'")
	}
	return fmt.Sprintf("SELECT 1 FROM file WHERE path IN (%s) LIMIT 1;", strings.Join(paths, ", "))
}

// ScriptParams are substituted into the setup scripts
type ScriptParams struct {
	FleetURL     string
	EnrollSecret string
	OrgID        uuid.UUID
}

// Script is a rendered setup script
type Script struct {
	Platform Platform `json:"platform"`
	FileName string   `json:"file_name"`
	Content  string   `json:"content"`
}

var scriptTemplates = map[Platform]*template.Template{
	PlatformMacOS: template.Must(template.New("macos").Parse(`#!/bin/bash
set -euo pipefail

MARKER="{{.MarkerPath}}"
sudo mkdir -p "$(dirname "$MARKER")"
echo "{{.OrgID}}" | sudo tee "$MARKER" > /dev/null
sudo chmod 644 "$MARKER"

fleetctl package --type=pkg \
  --fleet-url="{{.FleetURL}}" \
  --enroll-secret="{{.EnrollSecret}}" \
  --fleet-desktop
sudo installer -pkg fleet-osquery.pkg -target /
echo "Device agent installed for organization {{.OrgID}}"
`)),
	PlatformLinux: template.Must(template.New("linux").Parse(`#!/bin/bash
set -euo pipefail

MARKER="{{.MarkerPath}}"
sudo mkdir -p "$(dirname "$MARKER")"
echo "{{.OrgID}}" | sudo tee "$MARKER" > /dev/null
sudo chmod 644 "$MARKER"

if command -v dpkg > /dev/null; then
  PKG_TYPE=deb
else
  PKG_TYPE=rpm
fi

fleetctl package --type="$PKG_TYPE" \
  --fleet-url="{{.FleetURL}}" \
  --enroll-secret="{{.EnrollSecret}}"

if [ "$PKG_TYPE" = "deb" ]; then
  sudo dpkg -i fleet-osquery*.deb
else
  sudo rpm -i fleet-osquery*.rpm
fi
echo "Device agent installed for organization {{.OrgID}}"
`)),
	PlatformWindows: template.Must(template.New("windows").Parse(`$ErrorActionPreference = "Stop"

$Marker = '{{.MarkerPath}}'
New-Item -ItemType Directory -Force -Path (Split-Path $Marker) | Out-Null
Set-Content -Path $Marker -Value '{{.OrgID}}'

fleetctl package --type=msi ` + "`" + `
  --fleet-url='{{.FleetURL}}' ` + "`" + `
  --enroll-secret='{{.EnrollSecret}}'
Start-Process msiexec.exe -Wait -ArgumentList '/i fleet-osquery.msi /quiet'
Write-Output "Device agent installed for organization {{.OrgID}}"
`)),
}

// RenderScript renders the setup script for one platform
func RenderScript(platform Platform, params ScriptParams) (*Script, error) {
	tmpl, ok := scriptTemplates[platform]
	if !ok {
		return nil, fmt.Errorf("fleet: unsupported platform %q", platform)
	}
	if params.FleetURL == "" || params.EnrollSecret == "" {
		return nil, ErrNotConfigured
	}

	data := struct {
		ScriptParams
		MarkerPath string
	}{params, MarkerPath(platform, params.OrgID)}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("fleet: failed to render %s script: %w", platform, err)
	}

	fileName := "install-agent.sh"
	if platform == PlatformWindows {
		fileName = "install-agent.ps1"
	}
	return &Script{Platform: platform, FileName: fileName, Content: buf.String()}, nil
}
