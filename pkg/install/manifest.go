package install

import (
	"encoding/json"
	"fmt"
	"strings"

	"src.swiftkernel.dev/pkg/directive"
)

// ProductName is the name of the synthesized package and of its dynamic
// library product.
const ProductName = "jupyterInstalledPackages"

const manifestTemplate = `// swift-tools-version:5.5
import PackageDescription
let package = Package(
    name: "%[1]s",
    products: [
        .library(
            name: "%[1]s",
            type: .dynamic,
            targets: ["%[1]s"]),
    ],
    dependencies: [%[2]s],
    targets: [
        .target(
            name: "%[1]s",
            dependencies: [%[3]s],
            path: ".",
            sources: ["%[1]s.swift"]),
    ])
`

// Manifest returns the Package.swift of a package that depends on the given
// packages and links all their products into one dynamic library.
func Manifest(specs []directive.InstallSpec) string {
	var deps, products strings.Builder
	for _, spec := range specs {
		fmt.Fprintf(&deps, "%s,\n", spec.Spec)
		for _, product := range spec.Products {
			quoted, _ := json.Marshal(product)
			fmt.Fprintf(&products, "%s,\n", quoted)
		}
	}
	return fmt.Sprintf(manifestTemplate, ProductName, deps.String(), products.String())
}

// Describes the packages for humans.
func describe(specs []directive.InstallSpec) string {
	var sb strings.Builder
	for _, spec := range specs {
		fmt.Fprintf(&sb, "\t%s\n", spec.Spec)
		for _, product := range spec.Products {
			fmt.Fprintf(&sb, "\t\t%s\n", product)
		}
	}
	return sb.String()
}
