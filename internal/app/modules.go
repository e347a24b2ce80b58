package app

import (
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/modules/eval_context"
	"github.com/specialistvlad/cipipe/modules/guest_setup"
	"github.com/specialistvlad/cipipe/modules/notify_socketio"
	"github.com/specialistvlad/cipipe/modules/notify_webhook"
	"github.com/specialistvlad/cipipe/modules/rules_engine"
	"github.com/specialistvlad/cipipe/modules/s3_upload"
	"github.com/specialistvlad/cipipe/modules/static_guest"
	"github.com/specialistvlad/cipipe/modules/test_schedule_file"
	"github.com/specialistvlad/cipipe/modules/test_schedule_report"
	"github.com/specialistvlad/cipipe/modules/test_scheduler"
)

// coreModules is the definitive list of all modules that are compiled into
// the cipipe binary.
var coreModules = []module.Registrar{
	&eval_context.Module{},
	&rules_engine.Module{},
	&static_guest.Module{},
	&guest_setup.Module{},
	&test_schedule_file.Module{},
	&test_scheduler.Module{},
	&test_schedule_report.Module{},
	&s3_upload.Module{},
	&notify_socketio.Module{},
	&notify_webhook.Module{},
}

// NewCatalog registers modules, or every core module when none are given.
func NewCatalog(modules ...module.Registrar) *module.Catalog {
	if len(modules) == 0 {
		modules = coreModules
	}
	catalog := module.NewCatalog()
	for _, mod := range modules {
		mod.Register(catalog)
	}
	return catalog
}
