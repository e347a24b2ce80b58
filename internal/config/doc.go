// Package config loads the persisted per-module configuration.
//
// Every module may have a configuration file in each configuration
// directory, named after the module: "<dir>/<module>.hcl" (HCL attributes)
// or "<dir>/<module>.yaml". Directories are read in order and later ones
// override earlier ones, so a system-wide default in /etc can be overridden
// per user or per project. Values from these files sit between the module's
// compiled-in defaults and its command-line options.
//
//	# ~/.cipipe.d/config/static-guest.hcl
//	guest = ["box-1:x86_64", "box-2:s390x"]
package config
