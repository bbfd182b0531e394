package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeSnapshot parses a discovery payload: a JSON array of packages.
// Every function sees the package registry; entries a function declares
// itself take precedence over package entries with the same id.
func DecodeSnapshot(data []byte) ([]PackageMetadata, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var pkgs []PackageMetadata
	if err := json.Unmarshal(data, &pkgs); err != nil {
		return nil, fmt.Errorf("decode metadata snapshot: %w", err)
	}
	for i := range pkgs {
		for j := range pkgs[i].Functions {
			fn := &pkgs[i].Functions[j]
			fn.Components = mergeComponents(pkgs[i].Components, fn.Components)
		}
	}
	return pkgs, nil
}

func mergeComponents(pkg, own ComponentsMetadata) ComponentsMetadata {
	if len(own.DataTypes) == 0 {
		return pkg
	}
	if len(pkg.DataTypes) == 0 {
		return own
	}
	merged := make(map[string]*DataTypeMetadata, len(pkg.DataTypes)+len(own.DataTypes))
	for id, t := range pkg.DataTypes {
		merged[id] = t
	}
	for id, t := range own.DataTypes {
		merged[id] = t
	}
	return ComponentsMetadata{DataTypes: merged}
}

func EncodeSnapshot(pkgs []PackageMetadata) ([]byte, error) {
	if pkgs == nil {
		pkgs = []PackageMetadata{}
	}
	return json.MarshalIndent(pkgs, "", "  ")
}

// SelectPackage picks the package named name, falling back to the first one.
func SelectPackage(pkgs []PackageMetadata, name string) (PackageMetadata, bool) {
	for _, pkg := range pkgs {
		if pkg.PackageName == name {
			return pkg, true
		}
	}
	if len(pkgs) == 0 {
		return PackageMetadata{}, false
	}
	return pkgs[0], true
}
