package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
	sqlguard "github.com/delphix/dlpxdbprofiler/pkg/sql"
)

const validateOp = "validate configuration"

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance reports fields by their env var name, falling back to yaml.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if env := fld.Tag.Get("env"); env != "" {
				return env
			}
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// checkStruct runs tag validation and converts failures into one ConfigurationError.
func checkStruct(s any) error {
	err := validatorInstance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Wrap(apperrors.KindConfiguration, validateOp, err, "invalid configuration")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return apperrors.Configuration(validateOp, "%s", strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fmt.Sprint(fe.Value()))
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", fe.Field(), fmt.Sprint(fe.Value()))
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

// ValidateCompliance checks the settings needed to talk to the compliance engine.
func (c *Config) ValidateCompliance() error {
	return checkStruct(&c.Compliance)
}

// Validate checks the engine selector and the selected engine's settings.
func (d *Database) Validate() error {
	engine, ok := models.ParseEngine(d.Engine)
	if !ok {
		return apperrors.Configuration(validateOp, "DBP_DB_ENGINE must be one of [oracle mssql postgres mysql], got %q", d.Engine)
	}

	switch engine {
	case models.EngineOracle:
		if err := checkStruct(&d.Oracle); err != nil {
			return err
		}
		return d.Oracle.validateIdentity()
	case models.EngineMSSQL:
		return checkStruct(&d.MSSQL)
	case models.EnginePostgres:
		return checkStruct(&d.Postgres)
	case models.EngineMySQL:
		return checkStruct(&d.MySQL)
	}
	return nil
}

// validateIdentity enforces SID/SERVICE_NAME exclusivity.
func (o *OracleConfig) validateIdentity() error {
	sid := strings.TrimSpace(o.SID)
	svc := strings.TrimSpace(o.ServiceName)

	if sid != "" && svc != "" {
		return apperrors.Configuration(validateOp, "DBP_ORACLE_SID and DBP_ORACLE_SERVICE_NAME are mutually exclusive; set only one")
	}
	if sid == "" && svc == "" {
		return apperrors.Configuration(validateOp, "one of DBP_ORACLE_SID or DBP_ORACLE_SERVICE_NAME is required")
	}
	if o.ConnectorType == string(models.ConnectorNative) && sid == "" {
		return apperrors.Configuration(validateOp, "native Oracle connectors require DBP_ORACLE_SID; set DBP_ORACLE_CONNECTOR_TYPE=jdbc to connect by service name")
	}
	return nil
}

// ValidateNames checks the application and environment names.
func (c *Config) ValidateNames(requireEnvironment bool) error {
	if strings.TrimSpace(c.ApplicationName) == "" {
		return apperrors.Configuration(validateOp, "DBP_APPLICATION_NAME is required")
	}
	if requireEnvironment && strings.TrimSpace(c.EnvironmentName) == "" {
		return apperrors.Configuration(validateOp, "DBP_ENVIRONMENT_NAME is required")
	}
	return c.screenIdentifiers()
}

// ValidateProvisioning checks everything a provisioning run needs.
func (c *Config) ValidateProvisioning() error {
	if err := c.ValidateCompliance(); err != nil {
		return err
	}
	if err := c.ValidateNames(true); err != nil {
		return err
	}
	if err := checkStruct(c); err != nil {
		return err
	}
	if err := checkStruct(&c.Profile); err != nil {
		return err
	}
	if c.ConnectorScope() == models.ScopeSchema && strings.TrimSpace(c.SchemaName) == "" {
		return apperrors.Configuration(validateOp, "DBP_SCHEMA_NAME is required when DBP_CONNECTOR_SCOPE=schema")
	}
	return c.Database.Validate()
}

// ValidateJobs checks the settings needed to run profile jobs.
func (c *Config) ValidateJobs() error {
	if err := c.ValidateCompliance(); err != nil {
		return err
	}
	if err := c.ValidateNames(true); err != nil {
		return err
	}
	return checkStruct(&c.Profile)
}

func (c *Config) screenIdentifiers() error {
	results := sqlguard.CheckIdentifiers(map[string]string{
		"DBP_APPLICATION_NAME": c.ApplicationName,
		"DBP_ENVIRONMENT_NAME": c.EnvironmentName,
		"DBP_SCHEMA_NAME":      c.SchemaName,
	})
	if len(results) == 0 {
		return nil
	}
	fields := make([]string, 0, len(results))
	for _, r := range results {
		fields = append(fields, fmt.Sprintf("%s (fingerprint %s)", r.Field, r.Fingerprint))
	}
	return apperrors.Configuration(validateOp, "suspicious SQL in %s", strings.Join(fields, ", "))
}
