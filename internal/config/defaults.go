package config

// Default configuration values.
const (
	DefaultFactTable   = "FACT_CENSO_ESCOLAR"
	DefaultKeyStrategy = "sequence"
	DefaultSourceKind  = "csv"
	DefaultSourcePath  = "microdados_ed_basica.csv"
	DefaultDelimiter   = ";"
	DefaultEncoding    = "latin1"
)

// DefaultStar returns the school census layout: a location hierarchy,
// one dimension per categorical column and the basic-education counts.
func DefaultStar() StarConfig {
	return StarConfig{
		FactTable:   DefaultFactTable,
		KeyStrategy: DefaultKeyStrategy,
		Measures:    []string{"QT_DOC_BAS", "QT_MAT_BAS", "QT_TUR_BAS"},
		FlagColumns: []string{
			"TP_DEPENDENCIA",
			"TP_LOCALIZACAO",
			"IN_AGUA_POTAVEL",
			"IN_ENERGIA_REDE_PUBLICA",
			"IN_ESGOTO_REDE_PUBLICA",
			"IN_INTERNET",
			"IN_BIBLIOTECA",
			"IN_LABORATORIO_INFORMATICA",
		},
		Dimensions: []DimensionConfig{{
			Name: "DIM_LOCAL",
			Fields: []FieldConfig{
				{Name: "NO_REGIAO", Type: "string"},
				{Name: "NO_UF", Type: "string"},
				{Name: "NO_MUNICIPIO", Type: "string"},
			},
		}},
	}
}

// DefaultSource returns the census microdata CSV source.
func DefaultSource() SourceConfig {
	return SourceConfig{
		Kind:      DefaultSourceKind,
		Path:      DefaultSourcePath,
		Delimiter: DefaultDelimiter,
		Encoding:  DefaultEncoding,
	}
}

// ApplyDefaults fills unset sections with the census defaults.
func (c *ProjectConfig) ApplyDefaults() {
	if c.Star.FactTable == "" && len(c.Star.Dimensions) == 0 && len(c.Star.FlagColumns) == 0 {
		c.Star = DefaultStar()
	}
	if c.Star.KeyStrategy == "" {
		c.Star.KeyStrategy = DefaultKeyStrategy
	}
	if c.Source.Kind == "" {
		c.Source.Kind = DefaultSourceKind
	}
	if c.Target != nil {
		ApplyTargetDefaults(c.Target)
	}
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if t.Type == "postgres" && t.Port == 0 {
		t.Port = 5432
	}
}
