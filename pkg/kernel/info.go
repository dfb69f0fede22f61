package kernel

import (
	"context"

	"src.swiftkernel.dev/pkg/buildinfo"
	"src.swiftkernel.dev/pkg/toolchain"
)

// ProtocolVersion is the version of the notebook messaging protocol
// implemented by the kernel.
const ProtocolVersion = "5.4"

// Info describes the kernel.
type Info struct {
	ProtocolVersion       string       `json:"protocol_version"`
	Implementation        string       `json:"implementation"`
	ImplementationVersion string       `json:"implementation_version"`
	LanguageInfo          LanguageInfo `json:"language_info"`
	Banner                string       `json:"banner"`
	HelpLinks             []HelpLink   `json:"help_links"`
}

// LanguageInfo describes the language of the kernel.
type LanguageInfo struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	Mimetype       string `json:"mimetype"`
	FileExtension  string `json:"file_extension"`
	PygmentsLexer  string `json:"pygments_lexer"`
	CodemirrorMode string `json:"codemirror_mode"`
}

// HelpLink is a link shown in the help menu of a notebook.
type HelpLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Info returns information about the kernel. The Swift version is detected
// on the first call.
func (k *Kernel) Info() Info {
	version := k.swiftVersionNumber()
	return Info{
		ProtocolVersion:       ProtocolVersion,
		Implementation:        "swift-kernel",
		ImplementationVersion: buildinfo.Value.Version,
		LanguageInfo: LanguageInfo{
			Name:           "swift",
			Version:        version,
			Mimetype:       "text/x-swift",
			FileExtension:  ".swift",
			PygmentsLexer:  "swift",
			CodemirrorMode: "swift",
		},
		Banner: "Swift " + version + " Jupyter Kernel",
		HelpLinks: []HelpLink{
			{"Swift Documentation", "https://docs.swift.org"},
		},
	}
}

// Returns the major.minor version of Swift, or toolchain.FallbackVersion.
func (k *Kernel) swiftVersionNumber() string {
	k.versionOnce.Do(func() {
		k.version = toolchain.FallbackVersion
		if k.swiftPath == "" {
			return
		}
		out, err := toolchain.Version(context.Background(), k.swiftPath)
		if err != nil {
			logger.Warnw("cannot determine Swift version", "err", err)
			return
		}
		k.version = toolchain.ParseVersion(out)
	})
	return k.version
}
