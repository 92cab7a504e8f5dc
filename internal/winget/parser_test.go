package winget

import (
	"reflect"
	"testing"
)

// Sample `winget upgrade` transcript with a multi-word name containing
// internal whitespace and an explicit-targeting block at the end.
var mockUpgradeTranscript = []string{
	"Name                              Id                                Version      Available    Source",
	"-----------------------------------------------------------------------------------------------------",
	"Discord                           Discord.Discord                   1.0.9210     1.0.9219     winget",
	"Microsoft Edge WebView2 Runtime   Microsoft.EdgeWebView2Runtime     120.0.2210   121.0.2277   winget",
	"7-Zip                             7zip.7zip                         23.00        24.01        winget",
	"3 upgrades available.",
	"",
	"The following packages have an upgrade available, but require explicit targeting for upgrade:",
	"Name            Id                    Version     Available   Source",
	"--------------------------------------------------------------------",
	"Docker Desktop  Docker.DockerDesktop  4.26.0      4.27.1      winget",
	"",
	"(1/3) Found Discord [Discord.Discord] Version 1.0.9219",
	"Downloading https://dl.discordapp.net/apps/win/1.0.9219/DiscordSetup.exe",
	"  ██████████████████████████████   100%",
}

func TestParseUpgradeList(t *testing.T) {
	p := Parser{}
	got := p.ParseUpgradeList(mockUpgradeTranscript)

	expected := []Upgrade{
		{Name: "Discord", ID: "Discord.Discord", Version: "1.0.9210", Available: "1.0.9219", Source: "winget"},
		{Name: "Microsoft Edge WebView2 Runtime", ID: "Microsoft.EdgeWebView2Runtime", Version: "120.0.2210", Available: "121.0.2277", Source: "winget"},
		{Name: "7-Zip", ID: "7zip.7zip", Version: "23.00", Available: "24.01", Source: "winget"},
		{Name: "Docker Desktop", ID: "Docker.DockerDesktop", Version: "4.26.0", Available: "4.27.1", Source: "winget"},
	}

	if !reflect.DeepEqual(got, expected) {
		t.Errorf("ParseUpgradeList mismatch:\ngot  %+v\nwant %+v", got, expected)
	}
}

func TestParseUpgradeListNameWithInternalSpaces(t *testing.T) {
	p := Parser{}
	lines := []string{
		"Microsoft Edge  WebView2 Runtime    Microsoft.EdgeWebView2Runtime    120.0.2210    121.0.2277    winget",
	}

	got := p.ParseUpgradeList(lines)
	if len(got) != 1 {
		t.Fatalf("expected 1 upgrade, got %d", len(got))
	}
	if got[0].ID != "Microsoft.EdgeWebView2Runtime" {
		t.Errorf("name capture fragmented on internal whitespace: Id = %q", got[0].ID)
	}
}

func TestParseUpgradeListEmptyResult(t *testing.T) {
	p := Parser{}

	tests := []struct {
		name  string
		lines []string
	}{
		{"no lines", []string{}},
		{"no installed package notice", []string{"No installed package found matching input criteria."}},
		{"only header and separator", []string{"Name  Id  Version  Available  Source", "----------"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ParseUpgradeList(tt.lines)
			if len(got) != 0 {
				t.Errorf("expected empty result, got %+v", got)
			}
		})
	}
}

func TestParseUpgradeListPreReleaseVersions(t *testing.T) {
	p := Parser{}
	lines := []string{
		"Some Tool    Vendor.SomeTool    1.2.3-beta    1.2.4-rc1    winget",
	}

	got := p.ParseUpgradeList(lines)
	if len(got) != 1 {
		t.Fatalf("expected 1 upgrade, got %d", len(got))
	}
	if got[0].Version != "1.2.3-beta" || got[0].Available != "1.2.4-rc1" {
		t.Errorf("pre-release versions mangled: %+v", got[0])
	}
}

func TestExplicitTargetIDs(t *testing.T) {
	p := Parser{}
	got := p.ExplicitTargetIDs(mockUpgradeTranscript)

	expected := []string{"Docker.DockerDesktop"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("ExplicitTargetIDs = %v, want %v", got, expected)
	}
}

func TestExplicitTargetIDsRejectsProgressNoise(t *testing.T) {
	p := Parser{}
	lines := []string{
		"The following packages have an upgrade available, but require explicit targeting for upgrade:",
		"Name     Id               Version   Available  Source",
		"------------------------------------------------------",
		"Discord  Discord.Discord  1.0.9210  1.0.9219   winget",
		"2%",
		"1024 KB / 152 MB",
		"(1/1) Found Discord [Discord.Discord]",
		"Fake Row  Fake.Row  1.0  2.0  winget",
	}

	got := p.ExplicitTargetIDs(lines)
	expected := []string{"Discord.Discord"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("ExplicitTargetIDs = %v, want %v", got, expected)
	}
}

func TestExplicitTargetIDsStopsAtBlankLine(t *testing.T) {
	p := Parser{}
	lines := []string{
		"require explicit targeting for upgrade:",
		"Name  Id  Version  Available  Source",
		"-------------------------------------",
		"Tool One  Vendor.ToolOne  1.0.0  1.1.0  winget",
		"",
		"Tool Two  Vendor.ToolTwo  2.0.0  2.1.0  winget",
	}

	got := p.ExplicitTargetIDs(lines)
	expected := []string{"Vendor.ToolOne"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("table must end at first blank line: got %v, want %v", got, expected)
	}
}

func TestExplicitTargetIDsDeduplicates(t *testing.T) {
	p := Parser{}
	lines := []string{
		"require explicit targeting for upgrade:",
		"Tool  Vendor.Tool  1.0.0  1.1.0  winget",
		"Tool  Vendor.Tool  1.0.0  1.1.0  msstore",
	}

	got := p.ExplicitTargetIDs(lines)
	if len(got) != 1 || got[0] != "Vendor.Tool" {
		t.Errorf("expected deduplicated single id, got %v", got)
	}
}

func TestExplicitTargetIDsWithoutMarker(t *testing.T) {
	p := Parser{}
	got := p.ExplicitTargetIDs([]string{
		"Discord  Discord.Discord  1.0.9210  1.0.9219  winget",
	})
	if len(got) != 0 {
		t.Errorf("no marker means no targets, got %v", got)
	}
}

func TestRunningBlockers(t *testing.T) {
	p := Parser{}
	lines := []string{
		"(1/2) Found Discord [Discord.Discord] Version 1.0.9219",
		"Downloading https://dl.discordapp.net/apps/win/1.0.9219/DiscordSetup.exe",
		"Application is currently running. Exit the application then try again.",
		"(2/2) Found 7-Zip [7zip.7zip] Version 24.01",
		"Successfully installed",
	}

	got := p.RunningBlockers(lines)
	expected := []Blocker{{Name: "Discord", ID: "Discord.Discord"}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("RunningBlockers = %+v, want %+v", got, expected)
	}
}

func TestRunningBlockersDeduplicates(t *testing.T) {
	p := Parser{}
	lines := []string{
		"Found Discord [Discord.Discord]",
		"Application is currently running.",
		"Found Discord [Discord.Discord]",
		"Application is currently running.",
	}

	got := p.RunningBlockers(lines)
	if len(got) != 1 {
		t.Errorf("expected deduplicated blocker list, got %+v", got)
	}
}

func TestParseInstalledList(t *testing.T) {
	p := Parser{}
	lines := []string{
		"Name                    Id                     Version     Available  Source",
		"----------------------------------------------------------------------------",
		"Git                     Git.Git                2.43.0      2.44.0     winget",
		"Some Local Application  ARP\\Machine\\X64\\App    3.1",
		"Windows Terminal        Microsoft.WindowsTerminal  1.18.3181.0        winget",
	}

	got := p.ParseInstalledList(lines)
	if len(got) != 3 {
		t.Fatalf("expected 3 installed rows, got %d: %+v", len(got), got)
	}
	if got[0].ID != "Git.Git" || got[0].Version != "2.43.0" {
		t.Errorf("unexpected first row: %+v", got[0])
	}
	if got[1].Version != "3.1" {
		t.Errorf("three-column row failed to parse: %+v", got[1])
	}
}
