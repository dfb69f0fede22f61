package install

import "fmt"

// Steps of the pipeline, used in Error.
const (
	StepConfigure = "configure"
	StepPrepare   = "prepare"
	StepManifest  = "manifest"
	StepBuild     = "build"
	StepLocate    = "locate artifacts"
	StepCopy      = "copy modules"
	StepLoad      = "load library"
)

// Error is a failure of one step of the pipeline. Msg is meant for users and
// carries troubleshooting advice.
type Error struct {
	Step string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s\nError details: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	msgNoBuildPath = `Install Error: Cannot install packages because SWIFT_BUILD_PATH is not specified.

💡 This usually means the kernel was not configured correctly.
   • Set swift_build_path in the config file, or export SWIFT_BUILD_PATH`

	msgNoPackagePath = `Install Error: Cannot install packages because SWIFT_PACKAGE_PATH is not specified.

💡 This usually means the kernel was not configured correctly.
   • Set swift_package_path in the config file, or export SWIFT_PACKAGE_PATH`

	msgTimeout = `Install Error: Package build timed out after %d seconds.

💡 Troubleshooting:
   • Large packages may take longer to build
   • Increase timeout: export SWIFT_JUPYTER_BUILD_TIMEOUT=1200
   • Check your internet connection for slow downloads
   • Consider building the package outside the kernel first to cache dependencies
`

	msgBuildFailed = `Install Error: swift-build returned nonzero exit code %d.

💡 Troubleshooting:
   • Check that the package URL is correct
   • Verify the package version/branch exists
   • Check your internet connection
   • Try running with verbose output: %%install-swiftpm-flags -v
   • Some packages may not be compatible with your Swift version
`

	msgNoBuildDB = `Install Error: build.db is missing from build directory.

💡 Troubleshooting:
   • This indicates the build may have failed silently
   • Try cleaning the build directory and installing again
   • Check that swift-build is working: swift build --help
`

	msgCopyFailed = `Install Error: Failed to copy Swift module files.

💡 Troubleshooting:
   • Check permissions on %s
   • Ensure you have enough disk space
`

	msgLoadFailed = `Install Error: Failed to load shared library.

💡 Common causes:
   • Missing system dependencies (try: ldd %s)
   • Incompatible Swift version between kernel and packages
   • Corrupted build artifacts
   • Architecture mismatch (check Swift toolchain architecture)
`

	msgDlopenNil = `Install Error: dlopen returned nil (library load failed).

💡 To see detailed error information, run:
   String(cString: dlerror())

Common causes:
   • Missing or incompatible system libraries
   • Symbol conflicts with previously loaded packages
   • Try restarting the kernel and reinstalling
`
)
