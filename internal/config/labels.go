package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var defaultLabelsYAML []byte

// ButtonLabels are the reply-keyboard captions. The state machine treats them
// as opaque tokens: an input is a button press iff it equals the caption.
type ButtonLabels struct {
	Back         string `yaml:"back"          validate:"required"`
	Cart         string `yaml:"cart"          validate:"required"`
	Order        string `yaml:"order"         validate:"required"`
	Clear        string `yaml:"clear"         validate:"required"`
	Confirm      string `yaml:"confirm"       validate:"required"`
	Cancel       string `yaml:"cancel"        validate:"required"`
	Delivery     string `yaml:"delivery"      validate:"required"`
	SelfPick     string `yaml:"self_pick"     validate:"required"`
	Cash         string `yaml:"cash"          validate:"required"`
	Terminal     string `yaml:"terminal"      validate:"required"`
	Menu         string `yaml:"menu"          validate:"required"`
	Skip         string `yaml:"skip"          validate:"required"`
	SendLocation string `yaml:"send_location" validate:"required"`
	SharePhone   string `yaml:"share_phone"   validate:"required"`
	Settings     string `yaml:"settings"      validate:"required"`
	ChangeName   string `yaml:"change_name"   validate:"required"`
	ChangePhone  string `yaml:"change_phone"  validate:"required"`
	RemoveMarker string `yaml:"remove_marker" validate:"required"`
}

// TextLabels are reply templates. Several are fmt format strings; the verbs
// they expect are documented next to their use in the bot package.
type TextLabels struct {
	Welcome              string `yaml:"welcome"`
	AskName              string `yaml:"ask_name"`
	AskPhone             string `yaml:"ask_phone"`
	AskBirthday          string `yaml:"ask_birthday"`
	BadBirthday          string `yaml:"bad_birthday"`
	SelectMenu           string `yaml:"select_menu"`
	SelectSubcategory    string `yaml:"select_subcategory"`
	SelectProduct        string `yaml:"select_product"`
	ProductCard          string `yaml:"product_card"`
	AskQuantity          string `yaml:"ask_quantity"`
	BadQuantity          string `yaml:"bad_quantity"`
	AddedToCart          string `yaml:"added_to_cart"`
	CartTitle            string `yaml:"cart_title"`
	EmptyCart            string `yaml:"empty_cart"`
	CleanedCart          string `yaml:"cleaned_cart"`
	DeliveryLine         string `yaml:"delivery_line"`
	Total                string `yaml:"total"`
	SelectOrderType      string `yaml:"select_order_type"`
	EnterAddress         string `yaml:"enter_address"`
	SelectPaymentType    string `yaml:"select_payment_type"`
	OrderInfo            string `yaml:"order_info"`
	AddressLine          string `yaml:"address_line"`
	LocationLine         string `yaml:"location_line"`
	OrderAccepted        string `yaml:"order_accepted"`
	OrderCancelledByUser string `yaml:"order_cancelled_by_user"`
	WorkingTime          string `yaml:"working_time"`
	DeliveryETA          string `yaml:"delivery_eta"`
	ETAOk                string `yaml:"eta_ok"`
	ETACancel            string `yaml:"eta_cancel"`
	ThankYou             string `yaml:"thank_you"`
	OrderCancelled       string `yaml:"order_cancelled"`
	AdminOrderConfirmed  string `yaml:"admin_order_confirmed"`
	AdminOrderCancelled  string `yaml:"admin_order_cancelled"`
	Minutes              string `yaml:"minutes"`
	SettingsTitle        string `yaml:"settings_title"`
	EnterName            string `yaml:"enter_name"`
}

// Labels bundles every user-visible string of the bot.
type Labels struct {
	Buttons ButtonLabels `yaml:"buttons"`
	Texts   TextLabels   `yaml:"texts"`
}

// DefaultLabels returns the embedded label set.
func DefaultLabels() Labels {
	var l Labels
	if err := yaml.Unmarshal(defaultLabelsYAML, &l); err != nil {
		panic(fmt.Sprintf("config: embedded labels: %v", err))
	}
	return l
}

// LoadLabels returns the embedded labels, overlaid with the YAML file at path
// when path is non-empty. Keys missing from the override keep their defaults.
func LoadLabels(path string) (Labels, error) {
	l := DefaultLabels()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return l, fmt.Errorf("read labels: %w", err)
		}
		if err := yaml.Unmarshal(raw, &l); err != nil {
			return l, fmt.Errorf("parse labels %s: %w", path, err)
		}
	}
	if err := validator.New().Struct(l.Buttons); err != nil {
		return l, fmt.Errorf("labels: %w", err)
	}
	return l, nil
}
