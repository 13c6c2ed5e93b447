// Package cafe holds the café's static content (menu, cats, hours, rules)
// and renders it into the concierge system prompt. The content lives in an
// embedded YAML manifest so the site and the chatbot never disagree.
package cafe

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

//go:embed cafe.yaml
var cafeYAML []byte

// Info is the café's identity and opening hours
type Info struct {
	Name    string       `yaml:"name" json:"name"`
	Address string       `yaml:"address" json:"address"`
	Phone   string       `yaml:"phone" json:"phone"`
	Email   string       `yaml:"email" json:"email"`
	Hours   []HoursEntry `yaml:"hours" json:"hours"`
}

// HoursEntry keeps hours ordered the way the manifest lists them
type HoursEntry struct {
	Days string `yaml:"days" json:"days"`
	Open string `yaml:"open" json:"open"`
}

// MenuItem is a single orderable item
type MenuItem struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Price       string `yaml:"price" json:"price"`
}

// MenuCategory groups menu items for display
type MenuCategory struct {
	Category string     `yaml:"category" json:"category"`
	Items    []MenuItem `yaml:"items" json:"items"`
}

// Cat is one of the café's resident cats
type Cat struct {
	Name        string `yaml:"name" json:"name"`
	Age         string `yaml:"age" json:"age"`
	Breed       string `yaml:"breed" json:"breed"`
	Personality string `yaml:"personality" json:"personality"`
	FunFact     string `yaml:"fun_fact" json:"fun_fact"`
	Adoptable   bool   `yaml:"adoptable" json:"adoptable"`
}

// Content is the full parsed manifest
type Content struct {
	Info           Info           `yaml:"info" json:"info"`
	MenuCategories []MenuCategory `yaml:"menu_categories" json:"menu_categories"`
	Cats           []Cat          `yaml:"cats" json:"cats"`
	HouseRules     []string       `yaml:"house_rules" json:"house_rules"`
	Promotions     []string       `yaml:"promotions" json:"promotions"`
	DietaryOptions []string       `yaml:"dietary_options" json:"dietary_options"`
}

// Load parses the embedded manifest with strict validation. Unknown YAML
// fields are rejected (via KnownFields) to catch typos in the manifest.
func Load() (*Content, error) {
	var content Content
	decoder := yaml.NewDecoder(bytes.NewReader(cafeYAML))
	decoder.KnownFields(true)

	if err := decoder.Decode(&content); err != nil {
		return nil, fmt.Errorf("failed to parse cafe manifest: %w", err)
	}

	if content.Info.Name == "" {
		return nil, fmt.Errorf("cafe manifest missing required field: info.name")
	}
	if len(content.MenuCategories) == 0 {
		return nil, fmt.Errorf("cafe manifest has no menu categories")
	}

	return &content, nil
}

// SystemPrompt renders the concierge persona plus the café context. The
// assistant is instructed to answer only from this context.
func (c *Content) SystemPrompt() string {
	var b bytes.Buffer

	fmt.Fprintf(&b, "You are the friendly AI assistant for %s, a cozy cat café. ", c.Info.Name)
	b.WriteString("You have a warm, welcoming personality like a knowledgeable barista who adores cats. ")
	b.WriteString("Your responses should be helpful, playful, and always cat-themed when appropriate.\n\n")

	b.WriteString("IMPORTANT BEHAVIORAL RULES:\n")
	b.WriteString("- Only respond based on the café information provided below\n")
	b.WriteString("- If asked about topics outside this context, politely redirect back to café topics with a cat-themed response\n")
	b.WriteString("- Maintain a friendly, warm tone like a helpful barista who knows all the cats personally\n")
	b.WriteString("- Use cat puns and references naturally but don't overdo it\n")
	b.WriteString("- If you don't have specific information, say \"I'm still learning more about the café. Would you like to check our menu or meet our cats?\"\n\n")

	b.WriteString("CAFÉ INFORMATION:\n\n")

	b.WriteString("Location & Hours:\n")
	fmt.Fprintf(&b, "%s\n%s\n", c.Info.Name, c.Info.Address)
	for _, h := range c.Info.Hours {
		fmt.Fprintf(&b, "%s: %s\n", h.Days, h.Open)
	}
	b.WriteString("*Last orders 30 minutes before closing\n\n")

	b.WriteString("Our Menu:\n")
	for _, category := range c.MenuCategories {
		fmt.Fprintf(&b, "%s:\n", category.Category)
		for _, item := range category.Items {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", item.Name, item.Description, item.Price)
		}
		b.WriteString("\n")
	}

	b.WriteString("Our Cats:\n")
	for _, cat := range c.Cats {
		status := "Permanent resident"
		if cat.Adoptable {
			status = "Available for adoption!"
		}
		fmt.Fprintf(&b, "%s (%s, %s): %s. %s - %s\n", cat.Name, cat.Breed, cat.Age, cat.Personality, cat.FunFact, status)
	}
	b.WriteString("\n")

	b.WriteString("House Rules:\n")
	for _, rule := range c.HouseRules {
		fmt.Fprintf(&b, "- %s\n", rule)
	}
	b.WriteString("\n")

	b.WriteString("Current Promotions:\n")
	for _, promo := range c.Promotions {
		fmt.Fprintf(&b, "- %s\n", promo)
	}
	b.WriteString("\n")

	b.WriteString("Dietary Options:\n")
	for _, option := range c.DietaryOptions {
		fmt.Fprintf(&b, "- %s\n", option)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Contact Info:\n- Phone: %s\n- Email: %s", c.Info.Phone, c.Info.Email)

	return b.String()
}

// Handler serves the parsed manifest to the UI
func Handler(content *Content) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, content)
	}
}
